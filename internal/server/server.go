// Package server exposes chat sessions over HTTP with gin.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal/chat"
	"github.com/nunajera/kbchat/internal/config"
	"github.com/nunajera/kbchat/internal/provider"
	"github.com/nunajera/kbchat/internal/store"
)

//go:embed templates/index.html
var templatesFS embed.FS

const sessionCookie = "kb_session"

// multipartOverhead is the slack allowed above MaxUploadBytes for form framing.
const multipartOverhead = 1 << 20

type Server struct {
	cfg      config.Config
	sessions *store.MemoryStore
	chat     provider.ChatProvider
	started  time.Time
	engine   *gin.Engine
}

func New(cfg config.Config, sessions *store.MemoryStore, p provider.ChatProvider) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		chat:     p,
		started:  time.Now(),
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/index.html")))
	if cfg.Server.AllowOrigin != "" {
		r.Use(cors(cfg.Server.AllowOrigin))
	}

	r.GET("/", s.withSession(s.index))
	r.GET("/health", s.health)
	r.GET("/api/model", s.model)

	api := r.Group("/api")
	api.GET("/session", s.withSession(s.getSession))
	api.GET("/messages", s.withSession(s.getMessages))
	api.POST("/messages", s.withSession(s.postMessage))
	api.POST("/reset", s.withSession(s.reset))
	api.POST("/knowledge", s.withSession(s.uploadKnowledge))
	api.POST("/knowledge/reload", s.withSession(s.reloadKnowledge))

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logx.Infof("[http] listening on %s (source=%s, model=%s)", srv.Addr, s.cfg.Knowledge.Source, s.chat.Model())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionHandler func(c *gin.Context, sess *chat.Session)

// withSession resolves the caller's session from its cookie, starting a new one
// when the cookie is absent or the session has ended.
func (s *Server) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(sessionCookie); err == nil {
			if sess, ok := s.sessions.Get(id); ok {
				sess.Touch()
				h(c, sess)
				return
			}
		}
		h(c, s.startSession(c))
	}
}

func (s *Server) startSession(c *gin.Context) *chat.Session {
	sess := s.sessions.Create()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, sess.ID, 0, "/", "", false, true)
	return sess
}

// cors allows one credentialed origin, for a front end served elsewhere.
func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
