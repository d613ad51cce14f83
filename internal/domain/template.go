package domain

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template is a named message body with {{variable}} placeholders. Operators
// override the built-in defaults by storing a row with the same name.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"`
	UpdatedAt time.Time `json:"updated_at"`
}

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

func NewTemplate(name, title, content string) *Template {
	t := &Template{
		ID:        uuid.New(),
		Name:      name,
		Title:     title,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}
	t.ExtractVariables()
	return t
}

// ExtractVariables extracts variable names from the template content
func (t *Template) ExtractVariables() {
	matches := variablePattern.FindAllStringSubmatch(t.Content, -1)
	seen := make(map[string]bool)
	variables := make([]string, 0, len(matches))

	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			variables = append(variables, match[1])
			seen[match[1]] = true
		}
	}
	t.Variables = variables
}

// Render substitutes vars into the title and body. Unknown placeholders are
// left untouched.
func (t *Template) Render(vars map[string]string) Message {
	title, body := t.Title, t.Content
	for key, value := range vars {
		placeholder := "{{" + key + "}}"
		title = strings.ReplaceAll(title, placeholder, value)
		body = strings.ReplaceAll(body, placeholder, value)
	}
	return Message{Title: title, Body: body}
}

// Missing returns the variables the template uses that vars does not supply.
func (t *Template) Missing(vars map[string]string) []string {
	missing := make([]string, 0)
	for _, v := range t.Variables {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

// Built-in template names, one per reminder family.
const (
	TemplatePrayer       = "prayer_reminder"
	TemplateJumuah       = "jumuah_reminder"
	TemplateSuhoor       = "suhoor_reminder"
	TemplateIftar        = "iftar_reminder"
	TemplateNafl         = "nafl_reminder"
	TemplateHadith       = "daily_hadith"
	TemplateAnnouncement = "announcement"
)

var defaultTemplates = map[string]*Template{
	TemplatePrayer:       NewTemplate(TemplatePrayer, "{{prayer}} in {{offset}} minutes", "{{mosque}}: {{prayer}} {{anchor}} is at {{time}}."),
	TemplateJumuah:       NewTemplate(TemplateJumuah, "Jumu'ah in {{offset}} minutes", "{{mosque}}: Jumu'ah khutbah starts at {{time}}."),
	TemplateSuhoor:       NewTemplate(TemplateSuhoor, "Suhoor ends soon", "{{mosque}}: Suhoor ends at {{time}} (Fajr adhan)."),
	TemplateIftar:        NewTemplate(TemplateIftar, "Iftar soon", "{{mosque}}: Iftar is at {{time}} (Maghrib adhan)."),
	TemplateNafl:         NewTemplate(TemplateNafl, "{{prayer}} time", "{{mosque}}: the time for {{prayer}} has started ({{time}})."),
	TemplateHadith:       NewTemplate(TemplateHadith, "Daily hadith", "{{hadith}}\n- {{source}}"),
	TemplateAnnouncement: NewTemplate(TemplateAnnouncement, "{{mosque}}", "{{content}}"),
}

// DefaultTemplate returns the built-in template for name.
func DefaultTemplate(name string) (*Template, bool) {
	t, ok := defaultTemplates[name]
	return t, ok
}

// TemplateRepository defines the interface for template overrides
type TemplateRepository interface {
	GetByName(ctx context.Context, name string) (*Template, error)
}
