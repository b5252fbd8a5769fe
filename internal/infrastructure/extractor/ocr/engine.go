package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine is one OCR engine instance. Each pool worker owns exactly one,
// created by its factory on worker start and reused across tasks.
type Engine interface {
	Recognize(image []byte) (string, error)
	Close() error
}

// EngineFactory builds a fresh engine for a (re)starting worker.
type EngineFactory func() (Engine, error)

type tesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractFactory returns a factory producing tesseract-backed engines.
// languages uses the tesseract convention, e.g. "rus+kaz+eng".
func NewTesseractFactory(languages string) EngineFactory {
	langs := strings.Split(languages, "+")
	return func() (Engine, error) {
		client := gosseract.NewClient()
		if err := client.SetLanguage(langs...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set ocr languages: %w", err)
		}
		return &tesseractEngine{client: client}, nil
	}
}

func (e *tesseractEngine) Recognize(image []byte) (string, error) {
	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

func (e *tesseractEngine) Close() error {
	return e.client.Close()
}
