package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/types"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}

type healthResponse struct {
	Healthy        bool   `json:"healthy"`
	Version        string `json:"version"`
	UptimeSec      int64  `json:"uptime_sec"`
	ActiveWorkers  int    `json:"active_workers"`
	TotalWorkers   int    `json:"total_workers"`
	ActiveMissions int    `json:"active_missions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := 0
	for _, m := range s.registry.ListMissions() {
		if !m.Status.IsTerminal() {
			active++
		}
	}
	respondJSON(w, http.StatusOK, healthResponse{
		Healthy:        true,
		Version:        Version,
		UptimeSec:      int64(time.Since(s.startTime).Seconds()),
		ActiveWorkers:  s.swarm.CountActive(),
		TotalWorkers:   s.swarm.TotalSlots(),
		ActiveMissions: active,
	})
}

type submitMissionRequest struct {
	Brief     types.MissionBrief `json:"brief"`
	SessionID string             `json:"session_id"`
	Priority  types.Priority     `json:"priority"`
	DryRun    bool               `json:"dry_run"`
}

func (s *Server) handleSubmitMission(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, s.maxRequestBody)

	var req submitMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, string(apierr.InvalidBrief), "invalid request body")
		return
	}
	if req.Priority.Valid() {
		req.Brief.Priority = req.Priority
	}

	logger := log.WithComponent("api")
	result, err := s.registry.InitializeMission(req.Brief, req.DryRun)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("submitMission rejected")
		s.respondAPIError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"mission_id":            result.MissionID,
		"channel":               result.Channel,
		"estimated_duration_ms": result.EstimatedDurationMs,
		"total_tasks":           result.TotalTasks,
	})
}

type missionSummary struct {
	ID         string             `json:"id"`
	Status     types.MissionStatus `json:"status"`
	Progress   int                `json:"progress"`
	AgentCount int                `json:"agent_count"`
	StartTime  *time.Time         `json:"start_time,omitempty"`
	Title      string             `json:"title"`
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	states := s.registry.ListMissions()

	summaries := make([]missionSummary, 0, len(states))
	var counters types.MissionCounters
	for _, m := range states {
		st := m.StartTime
		summaries = append(summaries, missionSummary{
			ID:         m.ID,
			Status:     m.Status,
			Progress:   m.Progress,
			AgentCount: len(m.AgentIDs),
			StartTime:  &st,
			Title:      m.Brief.Title,
		})
		c := m.Counters()
		counters.Pending += c.Pending
		counters.InProgress += c.InProgress
		counters.Completed += c.Completed
		counters.Failed += c.Failed
		counters.Total += c.Total
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"missions": summaries,
		"counters": counters,
	})
}

type missionDetailResponse struct {
	Mission  types.MissionState    `json:"mission"`
	Tasks    []*types.Task         `json:"tasks"`
	Counters types.MissionCounters `json:"counters"`
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	state, err := s.registry.GetMission(id)
	if err != nil {
		s.respondAPIError(w, err)
		return
	}
	tasks, err := s.registry.GetMissionTasks(id)
	if err != nil {
		s.respondAPIError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, missionDetailResponse{
		Mission:  state,
		Tasks:    tasks,
		Counters: state.Counters(),
	})
}

type cancelMissionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelMission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req cancelMissionRequest
	if r.ContentLength != 0 {
		limitRequestSize(r, s.maxRequestBody)
		json.NewDecoder(r.Body).Decode(&req) // best-effort; empty reason is fine
	}
	if req.Reason == "" {
		req.Reason = "cancelled via control plane"
	}

	if err := s.registry.CancelMission(id, req.Reason); err != nil {
		s.respondAPIError(w, err)
		return
	}

	state, err := s.registry.GetMission(id)
	if err != nil {
		s.respondAPIError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"mission": state,
	})
}

type swarmSlotView struct {
	Index    int              `json:"index"`
	Status   types.SlotStatus `json:"status"`
	AgentID  string           `json:"agent_id,omitempty"`
	TaskID   string           `json:"task_id,omitempty"`
	Progress int              `json:"progress"`
}

func (s *Server) handleGetSwarm(w http.ResponseWriter, r *http.Request) {
	snaps := s.swarm.Slots()
	views := make([]swarmSlotView, len(snaps))
	for i, sl := range snaps {
		views[i] = swarmSlotView{
			Index:    sl.Index,
			Status:   sl.Status,
			AgentID:  sl.AgentID,
			TaskID:   sl.TaskID,
			Progress: sl.Progress,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_slots":     s.swarm.TotalSlots(),
		"available_slots": s.swarm.CountAvailableSlots(),
		"active_agents":   s.swarm.CountActive(),
		"slots":           views,
	})
}
