package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

type LogsResponse struct {
	Logs string `json:"logs"`
}

type DockerHandler struct {
	Engine domain.ContainerEngine
}

func NewDockerHandler(engine domain.ContainerEngine) *DockerHandler {
	return &DockerHandler{Engine: engine}
}

func (h *DockerHandler) ListContainers(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.ListContainers(r.Context())
	respond(w, r, v, err)
}

func (h *DockerHandler) StartContainer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.StartContainer, "Container started successfully")
}

func (h *DockerHandler) StopContainer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.StopContainer, "Container stopped successfully")
}

func (h *DockerHandler) RestartContainer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.RestartContainer, "Container restarted successfully")
}

func (h *DockerHandler) RemoveContainer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.RemoveContainer, "Container removed successfully")
}

func (h *DockerHandler) ContainerLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Engine.ContainerLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogsResponse{Logs: logs})
}

func (h *DockerHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.ListImages(r.Context())
	respond(w, r, v, err)
}

func (h *DockerHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.RemoveImage, "Image removed successfully")
}

func (h *DockerHandler) ListVolumes(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.ListVolumes(r.Context())
	respond(w, r, v, err)
}

func (h *DockerHandler) RemoveVolume(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "name", h.Engine.RemoveVolume, "Volume removed successfully")
}

func (h *DockerHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.ListNetworks(r.Context())
	respond(w, r, v, err)
}

func (h *DockerHandler) RemoveNetwork(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "id", h.Engine.RemoveNetwork, "Network removed successfully")
}

func (h *DockerHandler) action(w http.ResponseWriter, r *http.Request, param string, fn func(context.Context, string) error, okMessage string) {
	if err := fn(r.Context(), chi.URLParam(r, param)); err != nil {
		HandleError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, okMessage)
}
