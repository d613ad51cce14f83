package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// TemplateService renders reminder messages. A stored template overrides the
// built-in one of the same name.
type TemplateService struct {
	repo   domain.TemplateRepository
	logger *slog.Logger
}

// NewTemplateService creates a new TemplateService. repo may be nil, in which
// case only the built-in templates are used.
func NewTemplateService(repo domain.TemplateRepository, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		repo:   repo,
		logger: logger,
	}
}

// Resolve returns the template to use for name.
func (s *TemplateService) Resolve(ctx context.Context, name string) (*domain.Template, error) {
	fallback, ok := domain.DefaultTemplate(name)

	if s.repo != nil {
		template, err := s.repo.GetByName(ctx, name)
		switch {
		case err == nil:
			return template, nil
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("failed to load template override, using default",
				"name", name,
				"error", err,
			)
		}
	}

	if !ok {
		return nil, fmt.Errorf("template %q: %w", name, domain.ErrNotFound)
	}
	return fallback, nil
}

// Render renders a template with variables. An override that needs variables
// the caller does not supply is skipped in favour of the built-in template.
func (s *TemplateService) Render(ctx context.Context, name string, vars map[string]string) (domain.Message, error) {
	template, err := s.Resolve(ctx, name)
	if err != nil {
		return domain.Message{}, err
	}

	if missing := template.Missing(vars); len(missing) > 0 {
		fallback, ok := domain.DefaultTemplate(name)
		if !ok || fallback == template {
			return domain.Message{}, fmt.Errorf("template %q missing variables %v: %w", name, missing, domain.ErrInvalidInput)
		}
		s.logger.Warn("template override uses unknown variables, using default",
			"name", name,
			"missing", missing,
		)
		template = fallback
	}

	return template.Render(vars), nil
}
