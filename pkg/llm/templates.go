package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Prompt template file names, resolved under the prompts directory.
const (
	TemplateSystemInstruction = "system_instruction.md"
	TemplateDelegator         = "delegator_prompt.md"
	TemplateReactCycle        = "react_cycle_prompt.md"
)

// FallbackSystemInstruction is used when the system instruction template
// is missing from disk.
const FallbackSystemInstruction = "Você é um assistente de IA."

// Templates serves prompt templates from a directory, caching file
// contents and invalidating entries when the files change on disk.
type Templates struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

func NewTemplates(dir string, log *slog.Logger) *Templates {
	if log == nil {
		log = slog.Default()
	}
	return &Templates{
		dir:   dir,
		log:   log,
		cache: make(map[string]string),
	}
}

// Load returns a template's contents, reading from disk on a cache miss.
func (t *Templates) Load(name string) (string, error) {
	t.mu.RLock()
	content, ok := t.cache[name]
	t.mu.RUnlock()
	if ok {
		return content, nil
	}

	data, err := os.ReadFile(filepath.Join(t.dir, name))
	if err != nil {
		return "", fmt.Errorf("read prompt template %q: %w", name, err)
	}
	content = string(data)

	t.mu.Lock()
	t.cache[name] = content
	t.mu.Unlock()
	return content, nil
}

// SystemInstruction returns the system instruction template, falling back
// to a fixed default when the file is missing.
func (t *Templates) SystemInstruction() string {
	content, err := t.Load(TemplateSystemInstruction)
	if err != nil {
		t.log.Warn("system instruction template missing, using fallback", "error", err)
		return FallbackSystemInstruction
	}
	return content
}

// Watch invalidates cached templates when their files change. It blocks
// until the context is cancelled. Some systems do not support watching a
// file directly, so the whole directory is watched and events filtered.
func (t *Templates) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("watch prompt directory %s: %w", t.dir, err)
	}
	t.log.Info("watching prompt templates", "dir", t.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			t.mu.Lock()
			if _, cached := t.cache[name]; cached {
				delete(t.cache, name)
				t.log.Info("prompt template changed, cache invalidated", "template", name)
			}
			t.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.log.Error("template watcher error", "error", err)
		}
	}
}

// Fill substitutes {name} placeholders in a template. Unknown placeholders
// are left untouched.
func Fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
