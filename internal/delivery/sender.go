// Package delivery sends rendered notifications to chat groups.
package delivery

import "context"

// Sender delivers one message to one group.
type Sender interface {
	Send(ctx context.Context, group, message string) error
}
