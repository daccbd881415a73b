package generator

import (
	"context"
	"fmt"
	"os"
)

// StaticLLM 返回预先保存的回答，不调用外部模型，便于离线调试或重放某天的输出。
type StaticLLM struct {
	Answer string
}

// NewStaticLLMFromFile loads a previously captured raw answer.
func NewStaticLLMFromFile(path string) (StaticLLM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StaticLLM{}, fmt.Errorf("reading answer file %s: %w", path, err)
	}
	return StaticLLM{Answer: string(data)}, nil
}

func (m StaticLLM) Complete(_ context.Context, _ Prompt) (string, error) {
	return m.Answer, nil
}
