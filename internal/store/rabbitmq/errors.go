package rabbitmq

import "errors"

var ErrInvalidEvent = errors.New("rabbitmq: invalid event payload")
