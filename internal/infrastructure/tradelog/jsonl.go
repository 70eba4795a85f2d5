package tradelog

import (
	"encoding/json"
	"sync"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLSink appends trade records as JSON lines to a size-rotated file.
type JSONLSink struct {
	mu sync.Mutex
	w  *lumberjack.Logger
}

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // MB
			MaxBackups: 5,
			Compress:   true,
		},
	}
}

func (s *JSONLSink) Append(rec *domain.TradeRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}

func (s *JSONLSink) Close() error {
	return s.w.Close()
}
