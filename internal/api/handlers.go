package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/session-replay/internal/auth"
	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/session"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/gin-gonic/gin"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Token    string `json:"token"`
	Operator bool   `json:"operator"`
}

// FileRequest - тело запросов записи и воспроизведения
type FileRequest struct {
	File string `json:"file" binding:"required"`
	Mode string `json:"mode"` // только для воспроизведения; по умолчанию recorded-time
}

// ScriptRequest - интерактивная команда
type ScriptRequest struct {
	Script string `json:"script" binding:"required"`
}

// StatusResponse - состояние сервера
type StatusResponse struct {
	State           string       `json:"state"`
	ScheduleMode    string       `json:"schedule_mode,omitempty"`
	ApplicationTime float64      `json:"application_time"`
	SimulationTime  float64      `json:"simulation_time"`
	SimulationEpoch string       `json:"simulation_epoch"`
	Uptime          string       `json:"uptime"`
	Process         ProcessStats `json:"process"`
}

func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	user, ok := auth.Authenticate(rs.cfg.Users, req.Username, req.Password)
	if !ok {
		abort(c, http.StatusUnauthorized, "Неверное имя пользователя или пароль")
		return
	}

	token, err := rs.cfg.Authority.Issue(user.Username, user.Operator)
	if err != nil {
		rs.log.Error("❌ Ошибка выдачи токена: %v", err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	rs.log.Info("🔐 Вход пользователя %s (оператор: %t)", user.Username, user.Operator)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Вход выполнен",
		Data:    LoginResponse{Token: token, Operator: user.Operator},
	})
}

func (rs *RestServer) handleStatus(c *gin.Context) {
	status := StatusResponse{
		State:   rs.cfg.Session.State().String(),
		Uptime:  rs.metrics.GetUptime(),
		Process: rs.metrics.Snapshot(),
	}
	if rs.cfg.Scheduler != nil {
		status.ScheduleMode = rs.cfg.Scheduler.Mode().String()
	}
	if rs.cfg.Clock != nil {
		status.ApplicationTime = rs.cfg.Clock.ApplicationTime()
		status.SimulationTime = rs.cfg.Clock.SimulationTime()
		status.SimulationEpoch = rs.cfg.Epochs.EpochToString(status.SimulationTime)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Состояние получено", Data: status})
}

func (rs *RestServer) handleListRecordings(c *gin.Context) {
	infos, err := rs.cfg.Catalog.List(c.Request.Context())
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Список записей", Data: infos})
}

func (rs *RestServer) handleGetRecording(c *gin.Context) {
	info, err := rs.cfg.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Запись найдена", Data: info})
}

func (rs *RestServer) handleDeleteRecording(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := rs.cfg.Catalog.Get(ctx, id); err != nil {
		rs.fail(c, err)
		return
	}
	if err := rs.cfg.Catalog.Delete(ctx, id); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Запись удалена из каталога"})
}

func (rs *RestServer) handleStartRecording(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	path := rs.cfg.Paths.Recording(req.File)
	ctx := c.Request.Context()
	if err := rs.submit(ctx, func() error { return rs.cfg.Session.StartRecording(ctx, path) }); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Запись начата", Data: gin.H{"path": path}})
}

func (rs *RestServer) handleStopRecording(c *gin.Context) {
	ctx := c.Request.Context()
	if err := rs.submit(ctx, func() error { return rs.cfg.Session.StopRecording(ctx) }); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Запись остановлена"})
}

func (rs *RestServer) handleStartPlayback(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	mode := timeref.ModeRecordedTime
	if req.Mode != "" {
		m, err := timeref.ParseMode(req.Mode)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	path := rs.cfg.Paths.Resolve(req.File)
	ctx := c.Request.Context()
	err := rs.submit(ctx, func() error { return rs.cfg.Session.StartPlayback(ctx, path, mode) })

	// Воспроизведение идёт с записями до ошибочной строки
	var perr *keyframe.ParseError
	if errors.As(err, &perr) {
		c.JSON(http.StatusOK, GenericResponse{
			Success: true,
			Message: "Воспроизведение начато с ошибкой разбора",
			Data:    gin.H{"path": path, "mode": mode.String(), "warning": err.Error()},
		})
		return
	}
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Воспроизведение начато",
		Data:    gin.H{"path": path, "mode": mode.String()},
	})
}

func (rs *RestServer) handleStopPlayback(c *gin.Context) {
	ctx := c.Request.Context()
	if err := rs.submit(ctx, func() error { return rs.cfg.Session.StopPlayback(ctx) }); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Воспроизведение остановлено"})
}

func (rs *RestServer) handleExecuteScript(c *gin.Context) {
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	err := rs.submit(c.Request.Context(), func() error { return rs.cfg.Scripts.ExecuteInteractive(req.Script) })
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Скрипт выполнен"})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// fail переводит ошибку домена в HTTP статус
func (rs *RestServer) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrAlreadyPlaying),
		errors.Is(err, session.ErrRecordingActive):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidScript):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotReady):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		rs.log.Error("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	abort(c, status, err.Error())
}
