package topology

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/tinyrange/qdev/internal/define"
)

// hclDocument is the top-level structure of an HCL topology file.
type hclDocument struct {
	Name       string         `hcl:"name,optional"`
	StrictMode bool           `hcl:"strict_mode,optional"`
	USBs       []define.USB   `hcl:"usb,block"`
	Images     []define.Image `hcl:"image,block"`
	Devices    []hclDevice    `hcl:"device,block"`
}

type hclDevice struct {
	Kind      string     `hcl:"kind,optional"`
	Type      string     `hcl:"type,optional"`
	Key       string     `hcl:"key,optional"`
	Params    cty.Value  `hcl:"params,optional"`
	Parents   []Parent   `hcl:"parent,block"`
	Buses     []Bus      `hcl:"bus,block"`
	Templates *Templates `hcl:"templates,block"`
	Force     bool       `hcl:"force,optional"`
}

// DecodeHCL parses an HCL document. filename is used in diagnostics.
// Params are applied in key order since HCL objects are unordered.
func DecodeHCL(data []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclDocument
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	doc := &Document{
		Name:       parsed.Name,
		StrictMode: parsed.StrictMode,
		USBs:       parsed.USBs,
		Images:     parsed.Images,
	}
	for i, d := range parsed.Devices {
		params, err := ctyParams(d.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: device %d: %w", filename, i, err)
		}
		dev := Device{
			Kind:    d.Kind,
			Type:    d.Type,
			Key:     d.Key,
			Params:  params,
			Parents: d.Parents,
			Buses:   d.Buses,
			Force:   d.Force,
		}
		if d.Templates != nil {
			dev.Templates = *d.Templates
		}
		doc.Devices = append(doc.Devices, dev)
	}
	return doc, nil
}

// ctyParams flattens an object or map of scalars. Elements come out in
// lexical key order.
func ctyParams(v cty.Value) (Params, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", ty.FriendlyName())
	}
	var out Params
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		val, err := ctyScalar(ev)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", k.AsString(), err)
		}
		out = append(out, Param{Key: k.AsString(), Value: val})
	}
	return out, nil
}

func ctyScalar(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value must be known")
	}
	switch ty := v.Type(); {
	case ty.Equals(cty.String):
		return v.AsString(), nil
	case ty.Equals(cty.Bool):
		return v.True(), nil
	case ty.Equals(cty.Number):
		f := v.AsBigFloat()
		if i, acc := f.Int64(); acc == big.Exact {
			return int(i), nil
		}
		return f.Text('g', -1), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
