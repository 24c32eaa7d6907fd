package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal"
	"github.com/nunajera/kbchat/internal/chat"
	"github.com/nunajera/kbchat/internal/config"
	"github.com/nunajera/kbchat/internal/knowledge"
)

func (s *Server) index(c *gin.Context, sess *chat.Session) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Upload": s.cfg.Knowledge.Source == config.SourceUpload,
		"Reload": s.cfg.Knowledge.Source == config.SourceAutoload,
		"Accept": knowledge.SupportedExtensions(),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) model(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"model": s.chat.Model()})
}

func (s *Server) getSession(c *gin.Context, sess *chat.Session) {
	snap := sess.Knowledge(c.Request.Context())
	c.JSON(http.StatusOK, internal.SessionResponse{
		State:      string(sess.State(c.Request.Context())),
		Source:     string(s.cfg.Knowledge.Source),
		Knowledge:  snap.Info(),
		Diagnostic: snap.Diagnostic(),
	})
}

func (s *Server) getMessages(c *gin.Context, sess *chat.Session) {
	c.JSON(http.StatusOK, internal.ChatHistory{Messages: sess.History()})
}

func (s *Server) postMessage(c *gin.Context, sess *chat.Session) {
	var req internal.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content 為必填欄位"})
		return
	}

	reply, err := sess.Submit(c.Request.Context(), req.Content)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "content 為必填欄位"})
		return
	case errors.Is(err, chat.ErrNoKnowledge):
		c.JSON(http.StatusConflict, gin.H{
			"error": sess.Knowledge(c.Request.Context()).Diagnostic(),
			"state": chat.StateNoKnowledge,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, internal.SendMessageResponse{
		Reply: reply,
		Model: s.chat.Model(),
	})
}

// reset ends the session, which discards its history, and starts a new one.
func (s *Server) reset(c *gin.Context, sess *chat.Session) {
	s.sessions.Delete(sess.ID)
	next := s.startSession(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "state": next.State(c.Request.Context())})
}

func (s *Server) uploadKnowledge(c *gin.Context, sess *chat.Session) {
	if !sess.Options().OwnsKnowledge {
		c.JSON(http.StatusForbidden, gin.H{"error": chat.ErrUploadDisabled.Error()})
		return
	}

	limit := s.cfg.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "檔案過大", "max": limit})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file 為必填欄位"})
		return
	}
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "檔案過大", "max": limit})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := sess.Upload(fh.Filename, data)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	logx.WithContext(c.Request.Context()).Infof("[upload] session %s: %s (%d bytes) ready=%t",
		sess.ID, fh.Filename, len(data), snap.Ready())
	s.knowledgeResponse(c, snap)
}

func (s *Server) reloadKnowledge(c *gin.Context, sess *chat.Session) {
	snap, err := sess.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	s.knowledgeResponse(c, snap)
}

// knowledgeResponse reports a new snapshot; a failed load is 422 with the diagnostic.
func (s *Server) knowledgeResponse(c *gin.Context, snap *knowledge.Snapshot) {
	status := http.StatusOK
	state := chat.StateReady
	if !snap.Ready() {
		status = http.StatusUnprocessableEntity
		state = chat.StateNoKnowledge
	}
	c.JSON(status, internal.UploadResponse{
		State:      string(state),
		Knowledge:  snap.Info(),
		Diagnostic: snap.Diagnostic(),
	})
}
