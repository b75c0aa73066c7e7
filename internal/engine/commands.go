package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/util"
)

const commandTimeout = 2 * time.Second

var _ tsd.NodeSubscriber = (*Engine)(nil)

// OnNodeCommand maps broker commands onto bus operations.
func (e *Engine) OnNodeCommand(ctx context.Context, command tsd.IncomingNodeCommand) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	action := strings.ToLower(strings.TrimSpace(command.Action))
	logging.Info("node command", "node", e.cfg.Node, "id", command.ID, "action", action)

	switch action {
	case "enable":
		return e.SetSampling(ctx, true)
	case "disable":
		return e.SetSampling(ctx, false)
	case "set":
		// raw control word, loose value coercion
		return e.WriteWord(ctx, uint32(util.ToUint16(command.Value)))
	case "reset":
		return e.Reset(ctx)
	default:
		return fmt.Errorf("unknown action %q", command.Action)
	}
}
