package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/critiqdev/critiq/pkg/observability"
)

// defaultTemplate is used when no template file is configured. The first
// line becomes the subject.
const defaultTemplate = `Your confirmation code
Hello {{.Username}},

Your confirmation code is {{.Code}}. It is valid for {{.TTL}}.
If you did not request this code, ignore this message.
`

// TemplateData is what the mail template renders from.
type TemplateData struct {
	Username string
	Code     string
	TTL      time.Duration
}

// TemplateRenderer renders confirmation mails. When built from a file it
// watches the file and reloads on change; a broken edit keeps the last
// good template.
type TemplateRenderer struct {
	mu      sync.RWMutex
	tmpl    *template.Template
	path    string
	watcher *fsnotify.Watcher
	logger  *observability.Logger
}

// NewTemplateRenderer returns a renderer on the built-in template.
func NewTemplateRenderer(logger *observability.Logger) *TemplateRenderer {
	tmpl := template.Must(template.New("mail").Parse(defaultTemplate))
	return &TemplateRenderer{tmpl: tmpl, logger: logger}
}

// NewTemplateRendererFromFile loads the template from path and starts a
// watcher that reloads it on write.
func NewTemplateRendererFromFile(path string, logger *observability.Logger) (*TemplateRenderer, error) {
	r := &TemplateRenderer{path: path, logger: logger}
	if err := r.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create template watcher: %w", err)
	}
	// watch the directory; editors replace files instead of writing in place
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch template dir: %w", err)
	}
	r.watcher = watcher

	go r.watch()
	return r, nil
}

func (r *TemplateRenderer) load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	tmpl, err := template.New("mail").Parse(string(raw))
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	r.mu.Lock()
	r.tmpl = tmpl
	r.mu.Unlock()
	return nil
}

func (r *TemplateRenderer) watch() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if err := r.load(); err != nil {
				r.logger.WithError(err).Warn("mail template reload failed, keeping previous version")
				continue
			}
			r.logger.WithField("path", r.path).Info("mail template reloaded")
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Warn("template watcher error")
		}
	}
}

// Close stops the file watcher.
func (r *TemplateRenderer) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

// Render produces the mail subject and body. The template's first line
// is the subject, the rest the body.
func (r *TemplateRenderer) Render(data TemplateData) (subject, body string, err error) {
	r.mu.RLock()
	tmpl := r.tmpl
	r.mu.RUnlock()

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("failed to render mail template: %w", err)
	}

	rendered := b.String()
	subject, body, found := strings.Cut(rendered, "\n")
	if !found {
		return "", "", fmt.Errorf("mail template must have a subject line and a body")
	}
	return strings.TrimSpace(subject), strings.TrimLeft(body, "\n"), nil
}
