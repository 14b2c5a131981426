package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

const flashCookie = "checkin_flash"

// Flash kinds.
const (
	flashSuccess = "success"
	flashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// view is the data every page template receives.
type view struct {
	Leader    *auth.Identity
	Flash     *Flash
	Action    string
	Dashboard attendance.Dashboard
}

var funcs = template.FuncMap{
	"orNA": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	},
	"datetime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Local().Format("02/01/2006 15:04")
		case *time.Time:
			if t == nil {
				return "N/A"
			}
			return t.Local().Format("02/01/2006 15:04")
		}
		return "N/A"
	},
	"kind": func(t attendance.CheckinType) string {
		switch t {
		case attendance.CheckinRapid:
			return "Rápido"
		case attendance.CheckinLeader:
			return "Líder"
		case attendance.CheckinAbsent:
			return "Ausente"
		}
		return string(t)
	},
	"days": func(d time.Duration) int {
		return int(d.Hours() / 24)
	},
}

func loadPages() (map[string]*template.Template, error) {
	pages := map[string]*template.Template{}
	for _, name := range []string{"index", "login", "cadastrar", "checkin", "painel", "erro"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/member_fields.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes page into a buffer first so a template error never
// leaves a half-written response.
func (h *Handler) render(c *gin.Context, status int, page string, v view) {
	if id, ok := auth.LeaderFrom(c); ok {
		v.Leader = &id
	}
	v.Flash = h.popFlash(c)

	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", v); err != nil {
		h.log.WithError(err).WithField("page", page).Error("failed to render page")
		c.String(http.StatusInternalServerError, genericFailure)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) setFlash(c *gin.Context, kind, msg string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(kind + "\n" + msg))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, value, 60, "/", "", h.secure, true)
}

func (h *Handler) popFlash(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(flashCookie, "", -1, "/", "", h.secure, true)
	return decodeFlash(raw)
}

func decodeFlash(raw string) *Flash {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(string(b), "\n")
	if !ok || msg == "" {
		return nil
	}
	return &Flash{Kind: kind, Message: msg}
}

// redirect sets a flash message and answers 303 to target.
func (h *Handler) redirect(c *gin.Context, target, kind, msg string) {
	if msg != "" {
		h.setFlash(c, kind, msg)
	}
	c.Redirect(http.StatusSeeOther, target)
}
