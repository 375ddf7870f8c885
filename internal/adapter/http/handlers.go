package http

import (
	"net/http"
	"strconv"

	"github.com/agentplane/agentplane/internal/adapter/ws"
	"github.com/agentplane/agentplane/internal/domain/agent"
	"github.com/agentplane/agentplane/internal/domain/pipeline"
	"github.com/agentplane/agentplane/internal/domain/registry"
	"github.com/agentplane/agentplane/internal/domain/runtime"
	"github.com/agentplane/agentplane/internal/port/database"
	"github.com/agentplane/agentplane/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Agents      *service.AgentService
	Registry    *service.RegistryService
	Runtime     *service.RuntimeService
	Pipelines   *service.PipelineService
	Deployments *service.DeploymentService
	Hub         *ws.Hub
	DB          database.Store
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Agents.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}

	a, err := h.Agents.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.UpdateRequest](w, r)
	if !ok {
		return
	}

	a, err := h.Agents.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Agents.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func (h *Handlers) EnsureRegistry(w http.ResponseWriter, r *http.Request) {
	spec, ok := readJSON[registry.Spec](w, r)
	if !ok {
		return
	}

	agentID := urlParam(r, "id")
	a, err := h.Agents.Get(r.Context(), agentID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	if spec.AgentName == "" {
		spec.AgentName = a.Name
	}

	rec, err := h.Registry.Ensure(r.Context(), agentID, spec)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) GetRegistry(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Registry.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "registry record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) DeleteRegistry(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := h.Registry.Delete(r.Context(), urlParam(r, "id"), force); err != nil {
		writeDomainError(w, err, "registry record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Runtime
// ---------------------------------------------------------------------------

func (h *Handlers) ProvisionRuntime(w http.ResponseWriter, r *http.Request) {
	spec, ok := readJSON[runtime.Spec](w, r)
	if !ok {
		return
	}

	agentID := urlParam(r, "id")
	a, err := h.Agents.Get(r.Context(), agentID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	if spec.AgentName == "" {
		spec.AgentName = a.Name
	}

	rec, err := h.Runtime.Provision(r.Context(), agentID, spec)
	if err != nil {
		writeDomainError(w, err, "runtime not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) GetRuntime(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Runtime.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "runtime record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) DeprovisionRuntime(w http.ResponseWriter, r *http.Request) {
	if err := h.Runtime.Deprovision(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "runtime record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Pipelines
// ---------------------------------------------------------------------------

func (h *Handlers) StartPipeline(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pipeline.Request](w, r)
	if !ok {
		return
	}

	p, err := h.Pipelines.Start(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.Pipelines.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "pipeline not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListPipelines(w http.ResponseWriter, r *http.Request) {
	list, err := h.Pipelines.List(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "pipelines not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ---------------------------------------------------------------------------
// Deployments
// ---------------------------------------------------------------------------

func (h *Handlers) ListDeploymentPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Deployments.Presets())
}

func (h *Handlers) RenderDeployment(w http.ResponseWriter, r *http.Request) {
	out, err := h.Deployments.Render(r.Context(), urlParam(r, "service"))
	if err != nil {
		writeDomainError(w, err, "deployment preset not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) RenderAllDeployments(w http.ResponseWriter, r *http.Request) {
	out, err := h.Deployments.RenderAll(r.Context())
	if err != nil {
		writeDomainError(w, err, "deployment presets not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
