package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/generation"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

type fakeResearcher struct {
	content string
	record  *domain.Company
	err     error
}

func (f *fakeResearcher) ResearchCompany(ctx context.Context, content string) (*domain.Company, error) {
	f.content = content
	return f.record, f.err
}

type fakeReplyGenerator struct {
	company      *domain.Company
	extraContext string
	reply        string
	err          error
}

func (f *fakeReplyGenerator) GenerateReply(ctx context.Context, company *domain.Company, extraContext string) (string, error) {
	f.company = company
	f.extraContext = extraContext
	return f.reply, f.err
}

func newHandlerDaemon(
	t *testing.T,
	companies store.CompanyStore,
	researcher generation.Researcher,
	generator generation.MessageGenerator,
) (*Daemon, *MemoryStore) {
	t.Helper()
	registry, err := RegisterHandlers(companies, researcher, generator, testLogger())
	require.NoError(t, err)
	tasks := NewMemoryStore()
	return NewDaemon(tasks, registry, fastConfig(), testLogger()), tasks
}

func TestResearchHandler_AcmeRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	companies := store.NewMemoryCompanyStore()
	researcher := &fakeResearcher{record: &domain.Company{
		Name:         "Acme Corporation",
		Type:         "fintech",
		Headquarters: "NYC",
		EngSize:      domain.IntPtr(40),
	}}
	d, tasks := newHandlerDaemon(t, companies, researcher, &fakeReplyGenerator{})

	created, err := tasks.Create(ctx, TypeResearch, "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)

	processed, err := d.Once(ctx, TypeResearch)
	require.NoError(t, err)
	require.True(t, processed)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	var record domain.Company
	require.NoError(t, got.DecodeResult(&record))
	assert.Equal(t, "Acme", record.Name, "subject key wins over the name the researcher returned")
	assert.Equal(t, "fintech", record.Type)

	company, err := companies.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "fintech", company.Type)
	assert.Equal(t, "NYC", company.Headquarters)
	require.NotNil(t, company.EngSize)
	assert.Equal(t, 40, *company.EngSize)
	assert.Equal(t, "Acme", researcher.content, "bare name is researched when no message exists")
}

func TestResearchHandler_SeedsFromInitialMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	companies := store.NewMemoryCompanyStore()
	_, err := companies.Upsert(ctx, &domain.Company{
		Name:           "Acme",
		InitialMessage: "Hi! Acme is hiring staff engineers in NYC.",
		ReplyMessage:   "Thanks, tell me more.",
		Notes:          "met at meetup",
	})
	require.NoError(t, err)

	researcher := &fakeResearcher{record: &domain.Company{
		Type:           "fintech",
		InitialMessage: "hallucinated message",
		ReplyMessage:   "hallucinated reply",
	}}
	d, tasks := newHandlerDaemon(t, companies, researcher, &fakeReplyGenerator{})

	_, err = tasks.Create(ctx, TypeResearch, "Acme", nil)
	require.NoError(t, err)
	_, err = d.Once(ctx, TypeResearch)
	require.NoError(t, err)

	assert.Equal(t, "Hi! Acme is hiring staff engineers in NYC.", researcher.content)

	company, err := companies.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "fintech", company.Type)
	assert.Equal(t, "met at meetup", company.Notes, "absent research fields keep stored values")
	assert.Equal(t, "Hi! Acme is hiring staff engineers in NYC.", company.InitialMessage)
	assert.Equal(t, "Thanks, tell me more.", company.ReplyMessage)
}

func TestResearchHandler_FailureLeavesCompanyUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	companies := store.NewMemoryCompanyStore()
	before, err := companies.Upsert(ctx, &domain.Company{Name: "Acme", Type: "fintech"})
	require.NoError(t, err)

	researcher := &fakeResearcher{err: errors.New("timeout")}
	d, tasks := newHandlerDaemon(t, companies, researcher, &fakeReplyGenerator{})

	created, err := tasks.Create(ctx, TypeResearch, "Acme", nil)
	require.NoError(t, err)
	_, err = d.Once(ctx, TypeResearch)
	require.NoError(t, err)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "timeout")

	after, err := companies.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResearchHandler_NilRecordFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	companies := store.NewMemoryCompanyStore()
	d, tasks := newHandlerDaemon(t, companies, &fakeResearcher{}, &fakeReplyGenerator{})

	created, err := tasks.Create(ctx, TypeResearch, "Acme", nil)
	require.NoError(t, err)
	_, err = d.Once(ctx, TypeResearch)
	require.NoError(t, err)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	_, err = companies.Get(ctx, "Acme")
	assert.ErrorIs(t, err, store.ErrCompanyNotFound)
}

func TestReplyHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores the generated reply", func(t *testing.T) {
		t.Parallel()
		companies := store.NewMemoryCompanyStore()
		_, err := companies.Upsert(ctx, &domain.Company{
			Name:           "Acme",
			InitialMessage: "Would you like to chat?",
			Type:           "fintech",
		})
		require.NoError(t, err)

		generator := &fakeReplyGenerator{reply: "  Sure, happy to chat.  "}
		d, tasks := newHandlerDaemon(t, companies, &fakeResearcher{}, generator)

		created, err := tasks.Create(ctx, TypeGenerateMessage, "Acme", json.RawMessage(`{"context":"ask about comp"}`))
		require.NoError(t, err)
		_, err = d.Once(ctx, TypeGenerateMessage)
		require.NoError(t, err)

		got, err := tasks.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, got.Status, got.Error)

		var result ReplyResult
		require.NoError(t, got.DecodeResult(&result))
		assert.Equal(t, "Sure, happy to chat.", result.ReplyMessage)

		assert.Equal(t, "ask about comp", generator.extraContext)
		assert.Equal(t, "Would you like to chat?", generator.company.InitialMessage)

		company, err := companies.Get(ctx, "Acme")
		require.NoError(t, err)
		assert.Equal(t, "Sure, happy to chat.", company.ReplyMessage)
		assert.Equal(t, "fintech", company.Type)
	})

	t.Run("fails without an initial message", func(t *testing.T) {
		t.Parallel()
		companies := store.NewMemoryCompanyStore()
		_, err := companies.Upsert(ctx, &domain.Company{Name: "Acme", Type: "fintech"})
		require.NoError(t, err)

		d, tasks := newHandlerDaemon(t, companies, &fakeResearcher{}, &fakeReplyGenerator{reply: "unused"})

		created, err := tasks.Create(ctx, TypeGenerateMessage, "Acme", nil)
		require.NoError(t, err)
		_, err = d.Once(ctx, TypeGenerateMessage)
		require.NoError(t, err)

		got, err := tasks.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Contains(t, got.Error, "no initial message")
	})

	t.Run("fails for unknown company", func(t *testing.T) {
		t.Parallel()
		companies := store.NewMemoryCompanyStore()
		d, tasks := newHandlerDaemon(t, companies, &fakeResearcher{}, &fakeReplyGenerator{reply: "unused"})

		created, err := tasks.Create(ctx, TypeGenerateMessage, "Nowhere Inc", nil)
		require.NoError(t, err)
		_, err = d.Once(ctx, TypeGenerateMessage)
		require.NoError(t, err)

		got, err := tasks.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Contains(t, got.Error, "does not exist")
	})

	t.Run("generator failure leaves reply unchanged", func(t *testing.T) {
		t.Parallel()
		companies := store.NewMemoryCompanyStore()
		_, err := companies.Upsert(ctx, &domain.Company{
			Name:           "Acme",
			InitialMessage: "Hello",
			ReplyMessage:   "old draft",
		})
		require.NoError(t, err)

		generator := &fakeReplyGenerator{err: generation.ErrContentBlocked}
		d, tasks := newHandlerDaemon(t, companies, &fakeResearcher{}, generator)

		created, err := tasks.Create(ctx, TypeGenerateMessage, "Acme", nil)
		require.NoError(t, err)
		_, err = d.Once(ctx, TypeGenerateMessage)
		require.NoError(t, err)

		got, err := tasks.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Contains(t, got.Error, "safety filters")

		company, err := companies.Get(ctx, "Acme")
		require.NoError(t, err)
		assert.Equal(t, "old draft", company.ReplyMessage)
	})
}
