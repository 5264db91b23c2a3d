package deploy

import (
	"context"

	"github.com/ajime-dev/ajime-agent/internal/workflow"
)

// NodeRunner executes a single workflow graph node, producing named
// outputs from named inputs. Concrete node types ("camera", "gpio_read",
// "ml_inference", ...) are left to be registered by callers; this package
// only provides the interface and the passthrough fallback so workflow
// deployment does not hard-fail on a node type it has no executor for yet.
type NodeRunner interface {
	Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error)
}

// NodeRunnerFactory builds a NodeRunner for a graph node's type string,
// falling back to passthroughRunner for any type without a registered
// constructor.
type NodeRunnerFactory struct {
	constructors map[string]func(workflow.Node) NodeRunner
}

// NewNodeRunnerFactory returns an empty factory; register node types with
// Register.
func NewNodeRunnerFactory() *NodeRunnerFactory {
	return &NodeRunnerFactory{constructors: make(map[string]func(workflow.Node) NodeRunner)}
}

// Register associates nodeType with a NodeRunner constructor.
func (f *NodeRunnerFactory) Register(nodeType string, ctor func(workflow.Node) NodeRunner) {
	f.constructors[nodeType] = ctor
}

// Create builds a NodeRunner for node, using the registered constructor for
// node.NodeType or passthroughRunner if none is registered.
func (f *NodeRunnerFactory) Create(node workflow.Node) NodeRunner {
	if ctor, ok := f.constructors[node.NodeType]; ok {
		return ctor(node)
	}
	return passthroughRunner{node: node}
}

// passthroughRunner returns its inputs unchanged. It exists so a workflow
// containing a node type this build has no executor for can still be
// deployed and wired up; only that node's behavior is a no-op.
type passthroughRunner struct {
	node workflow.Node
}

func (r passthroughRunner) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	return inputs, nil
}
