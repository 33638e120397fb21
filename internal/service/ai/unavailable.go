package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// unavailableModel stands in when no provider credentials are configured so
// sends degrade to the apology path instead of failing at startup.
type unavailableModel struct {
	reason string
}

// NewUnavailableModel returns a ChatModel whose calls always fail with reason.
func NewUnavailableModel(reason string) model.ChatModel {
	return &unavailableModel{reason: reason}
}

func (m *unavailableModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, m.reason)
}

func (m *unavailableModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, m.reason)
}

func (m *unavailableModel) BindTools([]*schema.ToolInfo) error {
	return nil
}
