package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoadedPrompts holds prompt text read from files for one operation
type LoadedPrompts struct {
	System string
	User   string
}

var (
	loadedPromptsMu sync.RWMutex
	loadedPrompts   = make(map[Operation]LoadedPrompts)
)

// GetPromptsForOperation returns a copy of the file prompts loaded for op
func GetPromptsForOperation(op Operation) LoadedPrompts {
	loadedPromptsMu.RLock()
	defer loadedPromptsMu.RUnlock()
	return loadedPrompts[op]
}

func setLoadedPrompt(op Operation, promptType, content string) {
	loadedPromptsMu.Lock()
	defer loadedPromptsMu.Unlock()
	p := loadedPrompts[op]
	if promptType == promptTypeSystem {
		p.System = content
	} else {
		p.User = content
	}
	loadedPrompts[op] = p
}

// resetLoadedPrompts clears every loaded prompt. Used by tests.
func resetLoadedPrompts() {
	loadedPromptsMu.Lock()
	defer loadedPromptsMu.Unlock()
	loadedPrompts = make(map[Operation]LoadedPrompts)
}

const (
	promptTypeSystem = "system"
	promptTypeUser   = "user"
)

// PromptFile is one prompt file referenced by the configuration
type PromptFile struct {
	Path      string
	Operation Operation
	Type      string
}

// PromptFiles lists every prompt file the configuration references
func (c *Config) PromptFiles() []PromptFile {
	var files []PromptFile
	for _, op := range Operations {
		prompts := c.operationPrompts(op)
		if prompts.SystemFile != "" {
			files = append(files, PromptFile{Path: prompts.SystemFile, Operation: op, Type: promptTypeSystem})
		}
		if prompts.UserFile != "" {
			files = append(files, PromptFile{Path: prompts.UserFile, Operation: op, Type: promptTypeUser})
		}
	}
	return files
}

// LoadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) LoadPromptsFromFiles() error {
	files := c.PromptFiles()
	if len(files) == 0 {
		log.Println("[CONFIG] No custom prompt files configured - using built-in defaults")
		return nil
	}

	for _, f := range files {
		if err := f.Load(); err != nil {
			return err
		}
	}

	log.Printf("[CONFIG] Total custom prompts loaded: %d", len(files))
	return nil
}

// Load reads the file and stores its content for the operation
func (f PromptFile) Load() error {
	content, err := loadPromptFromFile(f.Path, f.Type, string(f.Operation))
	if err != nil {
		return err
	}
	setLoadedPrompt(f.Operation, f.Type, content)
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist and are readable before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	for _, f := range c.PromptFiles() {
		absPath, err := filepath.Abs(f.Path)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", f.Type, f.Operation, f.Path))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", f.Type, f.Operation, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}
