package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.CreateAgent)
		r.Get("/agents/{id}", h.GetAgent)
		r.Put("/agents/{id}", h.UpdateAgent)
		r.Delete("/agents/{id}", h.DeleteAgent)

		// Container registry (nested under agents)
		r.Post("/agents/{id}/registry", h.EnsureRegistry)
		r.Get("/agents/{id}/registry", h.GetRegistry)
		r.Delete("/agents/{id}/registry", h.DeleteRegistry)

		// Runtime (nested under agents)
		r.Post("/agents/{id}/runtime", h.ProvisionRuntime)
		r.Get("/agents/{id}/runtime", h.GetRuntime)
		r.Delete("/agents/{id}/runtime", h.DeprovisionRuntime)

		// Provisioning pipelines
		r.Post("/agents/{id}/pipelines", h.StartPipeline)
		r.Get("/agents/{id}/pipelines", h.ListPipelines)
		r.Get("/pipelines/{id}", h.GetPipeline)

		// Deployment values
		r.Get("/deployments/presets", h.ListDeploymentPresets)
		r.Post("/deployments/render", h.RenderAllDeployments)
		r.Post("/deployments/{service}/render", h.RenderDeployment)
	})
}
