package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the task and company endpoints under /api.
func RegisterRoutes(r chi.Router, tasks *TaskHandler, companies *CompanyHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", tasks.CreateTask)
		r.Get("/tasks", tasks.ListTasks)
		r.Get("/tasks/{id}", tasks.GetTask)

		r.Get("/companies", companies.ListCompanies)
		r.Get("/companies/{name}", companies.GetCompany)
		r.Put("/companies/{name}", companies.UpsertCompany)
		r.Post("/companies/{name}/research", companies.ResearchCompany)
		r.Post("/companies/{name}/reply", companies.ReplyToCompany)
	})
}
