package hub

import (
	"Mercury/internal/model"
	"Mercury/internal/service"
)

// MonitorService exposes a live snapshot of the socket side for the HTTP
// monitor endpoint.
type MonitorService struct {
	registry *Registry
	uploads  *service.FileUploadService
}

func NewMonitorService(registry *Registry, uploads *service.FileUploadService) *MonitorService {
	return &MonitorService{registry: registry, uploads: uploads}
}

func (m *MonitorService) Stats() model.MonitorResponse {
	connected := m.registry.Count()
	status := "healthy"
	if connected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected: connected,
		},
		Uploads: model.UploadStats{
			ActiveSessions: m.uploads.ActiveSessions(),
		},
		Clients: m.registry.Snapshot(),
	}
}
