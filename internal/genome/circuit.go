package genome

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

const (
	DefaultCircuitGates = 100
	DefaultOutputFanIn  = 20
)

type Gate int

const (
	GateInput Gate = iota
	GateNot
	GateAnd
	GateOr
	GateXor
	GateNand
	GateNor
	GateXnor
)

const outputBlock = "NODE_OUTPUT"

var gateNames = [...]string{
	GateInput: "NODE_INPUT",
	GateNot:   "NODE_NOT",
	GateAnd:   "NODE_AND",
	GateOr:    "NODE_OR",
	GateXor:   "NODE_XOR",
	GateNand:  "NODE_NAND",
	GateNor:   "NODE_NOR",
	GateXnor:  "NODE_XNOR",
}

func (g Gate) String() string {
	if g < 0 || int(g) >= len(gateNames) {
		return fmt.Sprintf("Gate(%d)", int(g))
	}
	return gateNames[g]
}

// Arity is the number of inputs a gate consumes.
func (g Gate) Arity() int {
	switch g {
	case GateInput:
		return 0
	case GateNot:
		return 1
	default:
		return 2
	}
}

func (g Gate) eval(a, b bool) bool {
	switch g {
	case GateNot:
		return !a
	case GateAnd:
		return a && b
	case GateOr:
		return a || b
	case GateXor:
		return a != b
	case GateNand:
		return !(a && b)
	case GateNor:
		return !(a || b)
	case GateXnor:
		return a == b
	default:
		panic(fmt.Sprintf("genome: cannot evaluate %s", g))
	}
}

func gateByName(name string) (Gate, bool) {
	for i, n := range gateNames {
		if n == name {
			return Gate(i), true
		}
	}
	return 0, false
}

func randomGate(rng *rand.Rand) Gate {
	return Gate(1 + rng.Intn(len(gateNames)-1))
}

type Node struct {
	Gate   Gate
	Inputs []int
}

// Circuit is a boolean gate graph. Input nodes form a prefix of Nodes and
// every gate references strictly earlier nodes, so evaluating in index order
// is always sound. Each output counts how many of its referenced nodes are
// true.
type Circuit struct {
	Nodes   []Node
	Outputs [][]int
	inputs  int
}

// NewCircuit builds a random circuit with the default gate count and output
// fan-in.
func NewCircuit(shape Shape, rng *rand.Rand) *Circuit {
	return NewCircuitSized(shape, DefaultCircuitGates, DefaultOutputFanIn, rng)
}

func NewCircuitSized(shape Shape, gates, fanIn int, rng *rand.Rand) *Circuit {
	c := &Circuit{
		Nodes:   make([]Node, 0, shape.Inputs+gates),
		Outputs: make([][]int, 0, shape.Outputs),
		inputs:  shape.Inputs,
	}
	for i := 0; i < shape.Inputs; i++ {
		c.Nodes = append(c.Nodes, Node{Gate: GateInput})
	}
	for i := 0; i < gates; i++ {
		gate := randomGate(rng)
		c.Nodes = append(c.Nodes, Node{Gate: gate, Inputs: sample(rng, len(c.Nodes), gate.Arity())})
	}
	for i := 0; i < shape.Outputs; i++ {
		n := fanIn
		if n > len(c.Nodes) {
			n = len(c.Nodes)
		}
		refs := sample(rng, len(c.Nodes), n)
		if refs == nil {
			refs = []int{}
		}
		c.Outputs = append(c.Outputs, refs)
	}
	return c
}

func (c *Circuit) Kind() Kind { return KindCircuit }

func (c *Circuit) Shape() Shape {
	return Shape{Inputs: c.inputs, Outputs: len(c.Outputs)}
}

// Activations evaluates the circuit and returns the true-input count of each
// output.
func (c *Circuit) Activations(inputs []float64) []int {
	if len(c.Nodes) > 0 && len(inputs) != c.inputs {
		panic(fmt.Sprintf("genome: %v: circuit wants %d, got %d", ErrInputMismatch, c.inputs, len(inputs)))
	}
	values := make([]bool, len(c.Nodes))
	for i, node := range c.Nodes {
		switch node.Gate {
		case GateInput:
			values[i] = inputs[i] > 0
		case GateNot:
			values[i] = node.Gate.eval(values[node.Inputs[0]], false)
		default:
			values[i] = node.Gate.eval(values[node.Inputs[0]], values[node.Inputs[1]])
		}
	}
	counts := make([]int, len(c.Outputs))
	for i, refs := range c.Outputs {
		for _, ref := range refs {
			if values[ref] {
				counts[i]++
			}
		}
	}
	return counts
}

func (c *Circuit) Decide(inputs []float64, legal []int) int {
	counts := c.Activations(inputs)
	return pickMove(legal, func(move int) float64 {
		if move < 0 || move >= len(counts) {
			return math.Inf(-1)
		}
		return float64(counts[move])
	})
}

// Mutate rewires one output reference or one gate, each with even odds.
// When the chosen kind of site does not exist the other one is tried.
func (c *Circuit) Mutate(rng *rand.Rand) {
	if rng.Intn(2) == 0 {
		if !c.mutateOutput(rng) {
			c.mutateGate(rng)
		}
		return
	}
	if !c.mutateGate(rng) {
		c.mutateOutput(rng)
	}
}

func (c *Circuit) gateIndexes() []int {
	var out []int
	for i, node := range c.Nodes {
		if len(node.Inputs) > 0 {
			out = append(out, i)
		}
	}
	return out
}

func (c *Circuit) mutateOutput(rng *rand.Rand) bool {
	var wired []int
	for i, refs := range c.Outputs {
		if len(refs) > 0 {
			wired = append(wired, i)
		}
	}
	gates := c.gateIndexes()
	if len(wired) == 0 || len(gates) == 0 {
		return false
	}

	refs := c.Outputs[wired[rng.Intn(len(wired))]]
	pos := rng.Intn(len(refs))
	used := make(map[int]struct{}, len(refs))
	for _, ref := range refs {
		used[ref] = struct{}{}
	}
	var pool []int
	for _, idx := range gates {
		if _, ok := used[idx]; !ok {
			pool = append(pool, idx)
		}
	}
	if len(pool) == 0 {
		for _, idx := range gates {
			if idx != refs[pos] {
				pool = append(pool, idx)
			}
		}
	}
	if len(pool) == 0 {
		return false
	}
	refs[pos] = pool[rng.Intn(len(pool))]
	return true
}

func (c *Circuit) mutateGate(rng *rand.Rand) bool {
	gates := c.gateIndexes()
	if len(gates) == 0 {
		return false
	}
	idx := gates[rng.Intn(len(gates))]
	node := &c.Nodes[idx]
	if rng.Intn(2) == 0 {
		node.Gate = randomGate(rng)
	}
	node.Inputs = sample(rng, idx, node.Gate.Arity())
	return true
}

// Recipe encodes the circuit as comma separated blocks of
// NAME:ref:ref..., nodes first and outputs last.
func (c *Circuit) Recipe() (string, error) {
	blocks := make([]string, 0, len(c.Nodes)+len(c.Outputs))
	for _, node := range c.Nodes {
		blocks = append(blocks, encodeBlock(node.Gate.String(), node.Inputs))
	}
	for _, refs := range c.Outputs {
		blocks = append(blocks, encodeBlock(outputBlock, refs))
	}
	return strings.Join(blocks, ","), nil
}

func encodeBlock(name string, refs []int) string {
	var b strings.Builder
	b.WriteString(name)
	for _, ref := range refs {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ref))
	}
	return b.String()
}

func ParseCircuit(recipe string) (*Circuit, error) {
	c := &Circuit{}
	if recipe == "" {
		return c, nil
	}
	for i, block := range strings.Split(recipe, ",") {
		fields := strings.Split(block, ":")
		refs, err := parseRefs(fields[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrMalformedRecipe, i, err)
		}

		if fields[0] == outputBlock {
			for _, ref := range refs {
				if ref >= len(c.Nodes) {
					return nil, fmt.Errorf("%w: output block %d references node %d of %d", ErrInvalidReference, i, ref, len(c.Nodes))
				}
			}
			c.Outputs = append(c.Outputs, refs)
			continue
		}

		gate, ok := gateByName(fields[0])
		if !ok {
			return nil, fmt.Errorf("%w: block %d: unknown node %q", ErrMalformedRecipe, i, fields[0])
		}
		if len(c.Outputs) > 0 {
			return nil, fmt.Errorf("%w: block %d: node after output blocks", ErrMalformedRecipe, i)
		}
		if gate == GateInput && len(c.Nodes) != c.inputs {
			return nil, fmt.Errorf("%w: block %d: input node after gates", ErrMalformedRecipe, i)
		}
		if len(refs) != gate.Arity() {
			return nil, fmt.Errorf("%w: block %d: %s wants %d inputs, got %d", ErrMalformedRecipe, i, gate, gate.Arity(), len(refs))
		}
		idx := len(c.Nodes)
		for _, ref := range refs {
			if ref >= idx {
				return nil, fmt.Errorf("%w: node %d references node %d", ErrInvalidReference, idx, ref)
			}
		}
		c.Nodes = append(c.Nodes, Node{Gate: gate, Inputs: refs})
		if gate == GateInput {
			c.inputs++
		}
	}
	return c, nil
}

func parseRefs(fields []string) ([]int, error) {
	refs := make([]int, 0, len(fields))
	for _, field := range fields {
		ref, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		if ref < 0 {
			return nil, fmt.Errorf("negative reference %d", ref)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
