package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"checkin/internal/attendance"
	"checkin/internal/auth"
)

// User facing messages.
const (
	genericFailure      = "Não foi possível concluir a operação"
	invalidCredentials  = "Usuário ou senha incorretos"
	duplicateEmail      = "Email já cadastrado"
	memberNotFound      = "Obreiro não encontrado. Por favor, faça o cadastro primeiro."
	missingIdentity     = "Informe o email ou nome e departamento"
	invalidRegistration = "Informe nome e um email válido"
)

// Handler serves the HTML pages and JSON endpoints.
type Handler struct {
	svc    *attendance.Service
	auth   *auth.Manager
	log    *logrus.Logger
	pages  map[string]*template.Template
	secure bool
}

// NewHandler parses the embedded templates.
func NewHandler(svc *attendance.Service, am *auth.Manager, log *logrus.Logger, secure bool) (*Handler, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, auth: am, log: log, pages: pages, secure: secure}, nil
}

type memberForm struct {
	Name       string `form:"nome"`
	Email      string `form:"email"`
	Phone      string `form:"telefone"`
	BirthDate  string `form:"data_nascimento"`
	Department string `form:"departamento"`
	Notes      string `form:"observacoes"`
}

func (f memberForm) input() attendance.MemberInput {
	return attendance.MemberInput{
		Name:       f.Name,
		Email:      f.Email,
		Phone:      f.Phone,
		BirthDate:  f.BirthDate,
		Department: f.Department,
		Notes:      f.Notes,
	}
}

func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, "index", view{})
}

func (h *Handler) LoginForm(c *gin.Context) {
	if _, ok := auth.LeaderFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/painel_lider")
		return
	}
	h.render(c, http.StatusOK, "login", view{Action: c.Request.URL.Path})
}

// Login authenticates a leader. Every failure, whatever the cause, gets the
// same redirect and message.
func (h *Handler) Login(c *gin.Context) {
	back := c.Request.URL.Path
	leader, err := h.svc.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidCredentials) {
			h.log.WithField("ip", c.ClientIP()).Warn("leader login rejected")
			h.redirect(c, back, flashError, invalidCredentials)
			return
		}
		h.fail(c, back, err)
		return
	}
	if err := h.auth.Login(c, leader.ID, leader.Name); err != nil {
		h.fail(c, back, err)
		return
	}
	h.log.WithField("leader_id", leader.ID).Info("leader logged in")
	h.redirect(c, "/painel_lider", flashSuccess, "Login realizado com sucesso!")
}

func (h *Handler) Logout(c *gin.Context) {
	h.auth.Logout(c)
	h.redirect(c, "/", flashSuccess, "Logout realizado com sucesso!")
}

func (h *Handler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "cadastrar", view{})
}

func (h *Handler) Register(c *gin.Context) {
	var f memberForm
	if err := c.ShouldBind(&f); err != nil {
		h.redirect(c, "/cadastrar", flashError, invalidRegistration)
		return
	}
	_, err := h.svc.Register(c.Request.Context(), f.input())
	h.afterCreate(c, "/cadastrar", err)
}

func (h *Handler) CheckinForm(c *gin.Context) {
	h.render(c, http.StatusOK, "checkin", view{Action: c.Request.URL.Path})
}

func (h *Handler) Checkin(c *gin.Context) {
	back := c.Request.URL.Path
	member, evt, err := h.svc.SelfCheckIn(c.Request.Context(), attendance.SelfCheckinInput{
		Email:     c.PostForm("email"),
		Name:      c.PostForm("nome"),
		Group:     c.PostForm("departamento"),
		UserAgent: c.Request.UserAgent(),
	})
	switch {
	case err == nil:
		h.redirect(c, back, flashSuccess, fmt.Sprintf("Check-in realizado para %s! Localização: %s", member.Name, evt.Location))
	case errors.Is(err, attendance.ErrNotFound):
		h.redirect(c, back, flashError, memberNotFound)
	case errors.Is(err, attendance.ErrInvalidInput):
		h.redirect(c, back, flashError, missingIdentity)
	default:
		h.fail(c, back, err)
	}
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to load dashboard")
		h.render(c, http.StatusInternalServerError, "erro", view{})
		return
	}
	h.render(c, http.StatusOK, "painel", view{Dashboard: d})
}

// LeaderCheckin records presence or absence for a member. A missing
// "presente" field means present.
func (h *Handler) LeaderCheckin(c *gin.Context) {
	leader, _ := auth.LeaderFrom(c)
	present := true
	if v := strings.TrimSpace(c.PostForm("presente")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.redirect(c, "/painel_lider", flashError, genericFailure)
			return
		}
		present = parsed
	}

	_, err := h.svc.LeaderCheckIn(c.Request.Context(), leader.LeaderID, c.PostForm("membro_id"), present)
	switch {
	case err == nil && present:
		h.redirect(c, "/painel_lider", flashSuccess, "Presença registrada")
	case err == nil:
		h.redirect(c, "/painel_lider", flashSuccess, "Ausência registrada")
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, attendance.ErrInvalidInput):
		h.redirect(c, "/painel_lider", flashError, "Obreiro não encontrado")
	default:
		h.fail(c, "/painel_lider", err)
	}
}

func (h *Handler) LeaderRegister(c *gin.Context) {
	leader, _ := auth.LeaderFrom(c)
	var f memberForm
	if err := c.ShouldBind(&f); err != nil {
		h.redirect(c, "/painel_lider", flashError, invalidRegistration)
		return
	}
	_, err := h.svc.CreateMemberForLeader(c.Request.Context(), leader.LeaderID, f.input())
	h.afterCreate(c, "/painel_lider", err)
}

func (h *Handler) afterCreate(c *gin.Context, back string, err error) {
	switch {
	case err == nil:
		h.redirect(c, back, flashSuccess, "Obreiro cadastrado com sucesso!")
	case errors.Is(err, attendance.ErrDuplicateEmail):
		h.redirect(c, back, flashError, duplicateEmail)
	case errors.Is(err, attendance.ErrInvalidInput):
		h.redirect(c, back, flashError, invalidRegistration)
	default:
		h.fail(c, back, err)
	}
}

// fail logs the cause and shows only the generic message.
func (h *Handler) fail(c *gin.Context, back string, err error) {
	h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	h.redirect(c, back, flashError, genericFailure)
}

// APICheckins returns the latest events as JSON.
func (h *Handler) APICheckins(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.svc.RecentCheckins(c.Request.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list check-ins")
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
		return
	}
	if events == nil {
		events = []attendance.RecentCheckin{}
	}
	c.JSON(http.StatusOK, gin.H{"checkins": events})
}

type memberJSON struct {
	attendance.MemberAttendance
	Present bool `json:"presente"`
}

// APIMembers returns every member with its latest event as JSON.
func (h *Handler) APIMembers(c *gin.Context) {
	members, err := h.svc.Members(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to list members")
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
		return
	}
	out := make([]memberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, memberJSON{MemberAttendance: m, Present: m.Present()})
	}
	c.JSON(http.StatusOK, gin.H{"membros": out})
}

// APIMemberHistory returns one member's events as JSON.
func (h *Handler) APIMemberHistory(c *gin.Context) {
	member, events, err := h.svc.MemberHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "membro não encontrado"})
			return
		}
		h.log.WithError(err).Error("failed to load member history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
		return
	}
	if events == nil {
		events = []attendance.CheckinEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"membro": member, "checkins": events})
}
