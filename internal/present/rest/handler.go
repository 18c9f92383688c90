package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/present/rest/middleware"
	"github.com/totegamma/heritage-repo/internal/present/rest/presenter"
	"github.com/totegamma/heritage-repo/internal/service"
	"github.com/totegamma/heritage-repo/internal/usecase"
)

var errSaveFailed = errors.New("the document store did not accept the write")

type Handler struct {
	resolver *usecase.Resolver
	saver    *usecase.Saver
	deleter  *usecase.Deleter
	search   *usecase.SearchUsecase
	userdata *usecase.UserDataUsecase
	signal   *service.SignalService
	auth     *service.AuthService
}

func NewHandler(
	resolver *usecase.Resolver,
	saver *usecase.Saver,
	deleter *usecase.Deleter,
	search *usecase.SearchUsecase,
	userdata *usecase.UserDataUsecase,
	signal *service.SignalService,
	auth *service.AuthService,
) *Handler {
	return &Handler{
		resolver: resolver,
		saver:    saver,
		deleter:  deleter,
		search:   search,
		userdata: userdata,
		signal:   signal,
		auth:     auth,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/get/find/:collection/:id", h.handleFind)
	e.POST("/api/v1/post/push/:collection", h.handlePush)
	e.POST("/api/v1/post/remove/:collection/:id", h.handleRemove)
	e.GET("/api/v1/get/search/:collection", h.handleSearch)
	e.GET("/api/v1/user-data", h.handleUserData)
	e.POST("/api/v1/logout", h.handleLogout)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleFind(c echo.Context) error {
	ctx := c.Request().Context()

	collection, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	depth := domain.MaxDepth
	if depthStr := c.QueryParam("depth"); depthStr != "" {
		depth, err = strconv.Atoi(depthStr)
		if err != nil || depth < 0 {
			return presenter.BadRequestMessage(c, "invalid depth parameter")
		}
	}

	doc, err := h.resolver.ResolveAny(ctx, collection, c.Param("id"), depth)
	if err != nil {
		return presenter.Error(c, err)
	}
	if doc == nil {
		return presenter.NotFound(c, "document not found")
	}

	if comp, ok := doc.(*domain.Compilation); ok {
		user := middleware.Requester(ctx)
		if comp.Password != "" && !domain.IsOwner(user, comp) && c.QueryParam("password") != comp.Password {
			return presenter.Forbidden(c, "compilation is password protected")
		}
		comp.Password = ""
	}

	return presenter.OK(c, doc)
}

func (h *Handler) handlePush(c echo.Context) error {
	ctx := c.Request().Context()

	user := middleware.Requester(ctx)
	if user == nil {
		return presenter.Unauthorized(c)
	}

	collection, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := domain.NewDocument(collection)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if err := c.Bind(doc); err != nil {
		return presenter.BadRequest(c, err)
	}

	if id := doc.DocID(); id != "" {
		existing, err := h.resolver.ResolveAny(ctx, collection, id, 0)
		if err != nil {
			return presenter.Error(c, err)
		}
		if _, protected := existing.(domain.Accessible); protected && !domain.IsOwner(user, existing) {
			return presenter.Forbidden(c, "not an owner of "+string(collection)+" "+id)
		}
	}

	ok, err := h.saver.Save(ctx, collection, doc, user)
	if err != nil {
		return presenter.Error(c, err)
	}
	if !ok {
		return presenter.InternalError(c, errSaveFailed)
	}

	return presenter.OK(c, doc)
}

func (h *Handler) handleRemove(c echo.Context) error {
	ctx := c.Request().Context()

	user := middleware.Requester(ctx)
	if user == nil {
		return presenter.Unauthorized(c)
	}

	collection, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	id := c.Param("id")

	existing, err := h.resolver.ResolveAny(ctx, collection, id, 0)
	if err != nil {
		return presenter.Error(c, err)
	}
	if existing == nil {
		return presenter.NotFound(c, "document not found")
	}

	err = h.deleter.DeleteAny(ctx, collection, id, user, domain.IsOwner(user, existing))
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	collection, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	results, err := h.search.Search(ctx, collection, c.QueryParam("text"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, results)
}

func (h *Handler) handleUserData(c echo.Context) error {
	ctx := c.Request().Context()

	user := middleware.Requester(ctx)
	if user == nil {
		return presenter.Unauthorized(c)
	}

	data, err := h.userdata.Get(ctx, user)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{
		"username": user.Username,
		"fullname": user.Fullname,
		"data":     data,
	})
}

func (h *Handler) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	if middleware.Requester(ctx) == nil {
		return presenter.Unauthorized(c)
	}

	h.auth.EndSession(ctx, middleware.RequesterToken(ctx))
	return presenter.OK(c, echo.Map{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type        string              `json:"type"`
	Collections []domain.Collection `json:"collections"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime is disabled"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []domain.Collection)
	output := make(chan domain.ChangeEvent)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Collections:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, "Socket subscribe",
					slog.Any("collections", req.Collections),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
