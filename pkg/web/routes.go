package web

import "github.com/gofiber/fiber/v3"

// Register mounts the API routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	d := router.Group("/documents")
	d.Post("/", h.CreateDocument)
	d.Get("/:id", h.GetDocument)

	w := router.Group("/workflows")
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/activity", h.GetActivity)
	w.Post("/:id/returns", h.ProcessReturn)
	w.Post("/:id/parallel-returns", h.ProcessParallelReturn)
	w.Post("/:id/steps/:index/resubmit", h.ResubmitStep)
	w.Post("/:id/steps/:stepId/sent", h.MarkStepAsSent)
	w.Post("/:id/steps/:stepId/skip", h.SkipStep)
	w.Post("/:id/cancel", h.CancelWorkflow)

	router.Post("/returns/import", h.ImportReturn)
	router.Get("/health", h.HealthCheck)
}
