package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/adapters/signal"
	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/domain"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	userKey  = "user"
	guestKey = "guest_id"
)

// IdentityMiddleware resolves the verified user. The identity headers are
// set by the authenticating proxy in front of this service; without them a
// cookie-backed guest id is issued when allowGuest is on.
func IdentityMiddleware(allowGuest bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderUserID); id != "" {
			user, err := domain.NewUser(id, c.GetHeader(HeaderUserRole))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.Set(userKey, *user)
			c.Next()
			return
		}
		if !allowGuest {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		sess := sessions.Default(c)
		guest, _ := sess.Get(guestKey).(string)
		if guest == "" {
			guest = "guest-" + uuid.NewString()
			sess.Set(guestKey, guest)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save guest session")
			}
		}
		c.Set(userKey, domain.User{ID: domain.UserID(guest), Role: "guest"})
		c.Next()
	}
}

func userFrom(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

// SetupRouter wires REST and the signaling socket. ctx outlives single
// requests and bounds every WS session.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SignalRoomSessions", store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"rooms":    o.Rooms.Len(),
			"sessions": o.Registry.Len(),
		})
	})

	api := r.Group("/api")
	api.Use(IdentityMiddleware(cfg.AllowGuest))

	api.GET("/rooms", func(c *gin.Context) {
		list, err := o.Rooms.List(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": list, "defaults": o.Rooms.Defaults()})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		info, ok, err := o.Rooms.GetRoomInfo(c.Request.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", string(id)).Msg("get room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get room"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	api.PATCH("/rooms/:id/metadata", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "metadata must be a non-empty object"})
			return
		}
		ctx := c.Request.Context()
		if _, ok, err := o.Rooms.GetRoomInfo(ctx, id); err != nil || !ok {
			writeRoomErr(c, id, err)
			return
		}
		if err := o.Rooms.UpdateRoomMetadata(ctx, id, patch); err != nil {
			writeRoomErr(c, id, err)
			return
		}
		info, ok, err := o.Rooms.GetRoomInfo(ctx, id)
		if err != nil || !ok {
			writeRoomErr(c, id, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": info.ID, "metadata": info.Metadata})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		user, ok := userFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c, user)
	})

	log.Info().Str("module", "adapters.http").Bool("allow_guest", cfg.AllowGuest).Msg("router setup")
	return r
}

// writeRoomErr treats a nil error as "room not found".
func writeRoomErr(c *gin.Context, id domain.RoomID, err error) {
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case domain.IsDomainError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(id)).Msg("room request")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
