package gantry

// OperationSpec is the serializable description of a mounted operation:
// its route, tier, middleware chain, and attempt budget. Useful for
// generating route inventories and for asserting pipeline configuration in
// tests without reaching into unexported state.
type OperationSpec struct {
	Name   string `json:"name" yaml:"name"`
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`

	Tier  AccessTier `json:"tier" yaml:"tier"`
	Steps []string   `json:"steps,omitempty" yaml:"steps,omitempty"`

	MaxAttempts int    `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	Window      string `json:"window,omitempty" yaml:"window,omitempty"`

	InputTypeName string `json:"inputTypeName" yaml:"inputTypeName"`
}

// specFor builds the serializable description of an operation.
func specFor(op Operation) OperationSpec {
	spec := OperationSpec{
		Name:          op.Name(),
		Method:        op.Method(),
		Path:          op.Path(),
		Tier:          op.Tier(),
		InputTypeName: op.InputTypeName(),
	}

	for _, step := range op.Steps() {
		spec.Steps = append(spec.Steps, step.Name)
	}

	if limit := op.Limit(); limit.MaxAttempts > 0 {
		spec.MaxAttempts = limit.MaxAttempts
		spec.Window = limit.Window.String()
	}

	return spec
}

// Describe returns the specs of all mounted operations, in mount order.
func (g *Gateway) Describe() []OperationSpec {
	specs := make([]OperationSpec, 0, len(g.operations))
	for _, op := range g.operations {
		specs = append(specs, specFor(op))
	}
	return specs
}
