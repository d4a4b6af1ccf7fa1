package refresh

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"embedauth/pkg/middleware"
	"embedauth/pkg/problems"
)

const Path = "/api/token/refresh"

const maxBodyBytes = 4 << 10

type refreshRequest struct {
	PluginID string `json:"pluginId"`
}

// RegisterRoutes mounts the refresh endpoint. It expects WithSession to run
// earlier in the chain.
func RegisterRoutes(r chi.Router, svc *Service, log *zap.SugaredLogger) {
	r.Post(Path, func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		var body refreshRequest
		// An unreadable body is treated as a missing plugin id.
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
			log.Debugw("refresh: bad body", "err", err, "reqid", middleware.RequestIDFrom(ctx))
		}
		res, err := svc.Refresh(ctx, body.PluginID, middleware.SessionFrom(ctx))
		if err != nil {
			if problems.KindOf(err) == problems.Internal {
				log.Errorw("refresh failed", "plugin", body.PluginID, "err", err, "reqid", middleware.RequestIDFrom(ctx))
			}
			problems.Write(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(res)
	})
}
