package genome

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

const DefaultNetworkLayers = 3

// Neuron is a biased weighted sum over the previous layer.
type Neuron struct {
	InputWeights []float64 `json:"input_weights"`
	Bias         float64   `json:"bias"`
}

type Layer struct {
	Nodes []Neuron `json:"nodes"`
}

// Network is a fixed topology feed-forward stack. Outputs are raw linear
// sums; the logistic function only bounds freshly generated or mutated
// weights and biases.
type Network struct {
	Layers []Layer `json:"layers"`
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func perturbation(rng *rand.Rand) float64 {
	return rng.Float64()*4 - 2
}

// NewNetwork builds the default stack: two hidden layers as wide as the input
// vector followed by the output layer.
func NewNetwork(shape Shape, rng *rand.Rand) *Network {
	return NewNetworkLayers(shape, DefaultNetworkLayers, rng)
}

func NewNetworkLayers(shape Shape, layers int, rng *rand.Rand) *Network {
	if layers < 1 {
		layers = 1
	}
	n := &Network{Layers: make([]Layer, 0, layers)}
	for i := 0; i < layers-1; i++ {
		n.Layers = append(n.Layers, generateLayer(shape.Inputs, shape.Inputs, rng))
	}
	n.Layers = append(n.Layers, generateLayer(shape.Outputs, shape.Inputs, rng))
	return n
}

func generateLayer(width, fanIn int, rng *rand.Rand) Layer {
	layer := Layer{Nodes: make([]Neuron, width)}
	for i := range layer.Nodes {
		weights := make([]float64, fanIn)
		for j := range weights {
			weights[j] = Sigmoid(perturbation(rng))
		}
		layer.Nodes[i] = Neuron{InputWeights: weights, Bias: Sigmoid(perturbation(rng))}
	}
	return layer
}

func (n *Network) Kind() Kind { return KindNetwork }

func (n *Network) Shape() Shape {
	if len(n.Layers) == 0 {
		return Shape{}
	}
	var shape Shape
	if first := n.Layers[0].Nodes; len(first) > 0 {
		shape.Inputs = len(first[0].InputWeights)
	}
	shape.Outputs = len(n.Layers[len(n.Layers)-1].Nodes)
	return shape
}

// Forward propagates inputs through every layer and returns the raw outputs.
func (n *Network) Forward(inputs []float64) []float64 {
	if want := n.Shape().Inputs; len(n.Layers) > 0 && len(inputs) != want {
		panic(fmt.Sprintf("genome: %v: network wants %d, got %d", ErrInputMismatch, want, len(inputs)))
	}
	values := inputs
	for _, layer := range n.Layers {
		next := make([]float64, len(layer.Nodes))
		for i, neuron := range layer.Nodes {
			sum := neuron.Bias
			for j, w := range neuron.InputWeights {
				if j < len(values) {
					sum += w * values[j]
				}
			}
			next[i] = sum
		}
		values = next
	}
	return values
}

func (n *Network) Decide(inputs []float64, legal []int) int {
	if len(n.Layers) == 0 {
		return pickMove(legal, func(int) float64 { return 0 })
	}
	outputs := n.Forward(inputs)
	return pickMove(legal, func(move int) float64 {
		if move < 0 || move >= len(outputs) {
			return math.Inf(-1)
		}
		return outputs[move]
	})
}

// Mutate perturbs one weight or the bias of a random neuron and squashes the
// result back into (0,1).
func (n *Network) Mutate(rng *rand.Rand) {
	var populated []int
	for i, layer := range n.Layers {
		if len(layer.Nodes) > 0 {
			populated = append(populated, i)
		}
	}
	if len(populated) == 0 {
		return
	}
	layer := n.Layers[populated[rng.Intn(len(populated))]]
	neuron := &layer.Nodes[rng.Intn(len(layer.Nodes))]
	if rng.Intn(2) == 0 && len(neuron.InputWeights) > 0 {
		i := rng.Intn(len(neuron.InputWeights))
		neuron.InputWeights[i] = Sigmoid(neuron.InputWeights[i] + perturbation(rng))
		return
	}
	neuron.Bias = Sigmoid(neuron.Bias + perturbation(rng))
}

func (n *Network) Recipe() (string, error) {
	out := *n
	if out.Layers == nil {
		out.Layers = []Layer{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode network: %w", err)
	}
	return string(data), nil
}

func ParseNetwork(recipe string) (*Network, error) {
	n := &Network{}
	if recipe == "" {
		return n, nil
	}
	if err := json.Unmarshal([]byte(recipe), n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecipe, err)
	}
	for i, layer := range n.Layers {
		want := -1
		if i > 0 {
			want = len(n.Layers[i-1].Nodes)
		}
		for j, neuron := range layer.Nodes {
			if want < 0 {
				want = len(neuron.InputWeights)
			}
			if len(neuron.InputWeights) != want {
				return nil, fmt.Errorf("%w: layer %d neuron %d has %d weights, want %d", ErrMalformedRecipe, i, j, len(neuron.InputWeights), want)
			}
		}
	}
	return n, nil
}
