package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/services/netsync"
)

type syncResponse struct {
	netsync.SyncState
	IsSynced bool `json:"is_synced"`
}

type peersResponse struct {
	Count int                 `json:"count"`
	Peers []netsync.Peer      `json:"peers"`
	Stats []netsync.PeerStats `json:"stats"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func newSyncResponse(s netsync.SyncState) syncResponse {
	return syncResponse{SyncState: s, IsSynced: s.IsSynced()}
}

// GetSync returns the current snapshot as JSON.
func (s *Server) GetSync(c echo.Context) error {
	return s.writeJSON(c, http.StatusOK, newSyncResponse(s.manager.Snapshot()))
}

// GetPeers returns the registry and the per-peer statistics.
func (s *Server) GetPeers(c echo.Context) error {
	peers := s.manager.Peers()
	stats := s.manager.PeerStats()

	if stats == nil {
		stats = []netsync.PeerStats{}
	}

	return s.writeJSON(c, http.StatusOK, peersResponse{
		Count: len(peers),
		Peers: peers,
		Stats: stats,
	})
}

// GetStatus returns the plain text network and sync summary.
func (s *Server) GetStatus(c echo.Context) error {
	snapshot := s.manager.Snapshot()

	return c.String(http.StatusOK,
		netsync.FormatNetworkStatus(snapshot, s.manager.PeerStats(), time.Since(s.startedAt))+"\n\n"+
			netsync.FormatSyncStatus(snapshot)+"\n")
}

// GetSyncStatus returns the plain text sync progress.
func (s *Server) GetSyncStatus(c echo.Context) error {
	return c.String(http.StatusOK, netsync.FormatSyncStatus(s.manager.Snapshot())+"\n")
}

// GetPeerInfo returns one plain text block per tracked peer.
func (s *Server) GetPeerInfo(c echo.Context) error {
	return c.String(http.StatusOK, netsync.FormatPeerInfo(s.manager.PeerStats())+"\n")
}

// PostRefresh triggers a throttled refresh and returns the resulting snapshot.
func (s *Server) PostRefresh(c echo.Context) error {
	err := s.manager.RefreshNow(c.Request().Context())
	if err == nil {
		return s.writeJSON(c, http.StatusOK, newSyncResponse(s.manager.Snapshot()))
	}

	s.logger.Debugf("[DebugAPI] manual refresh: %v", err)

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errors.ErrThresholdExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, errors.ErrSyncInProgress), errors.Is(err, errors.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, errors.ErrSyncRefreshFailed):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()

	var tErr *errors.Error
	if errors.As(err, &tErr) {
		message = tErr.Message()
	}

	return s.writeJSON(c, status, errorResponse{
		Code:    errors.CodeOf(err).String(),
		Message: message,
	})
}

func (s *Server) writeJSON(c echo.Context, status int, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSONBlob(status, b)
}
