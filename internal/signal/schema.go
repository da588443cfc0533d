package signal

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const tradeSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["side", "entry", "stop"],
  "properties": {
    "side":    {"type": "string", "minLength": 1},
    "entry":   {"type": ["number", "string"]},
    "stop":    {"type": ["number", "string"]},
    "symbol":  {"type": "string"},
    "ticker":  {"type": "string"},
    "message": {"type": "string"}
  }
}`

const journalSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["symbol", "side", "qty", "entry", "stop"],
  "properties": {
    "action": {"type": "string"},
    "symbol": {"type": ["string", "number"]},
    "side":   {"type": "string", "minLength": 1},
    "qty":    {"type": ["number", "string"]},
    "entry":  {"type": ["number", "string"]},
    "stop":   {"type": ["number", "string"]},
    "tp1":    {"type": ["number", "string", "null"]},
    "tp2":    {"type": ["number", "string", "null"]},
    "score":  {"type": ["number", "string", "null"]}
  }
}`

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// schemaViolations 展开校验错误树，返回叶子节点描述（按字段排序，便于稳定输出）。
func schemaViolations(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				out = append(out, e.Message)
			} else {
				out = append(out, loc+": "+e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return strings.Join(out, "; ")
}
