package strategy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaRaw []byte

var configSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("strategy.json", strings.NewReader(string(schemaRaw))); err != nil {
		panic(fmt.Sprintf("add strategy schema: %v", err))
	}
	schema, err := compiler.Compile("strategy.json")
	if err != nil {
		panic(fmt.Sprintf("compile strategy schema: %v", err))
	}
	return schema
}

// DecodeConfig 在边界处解析外部提交的策略 JSON：先做结构校验，
// 再解码为 Config。结构非法即契约违例，引擎内部不再做类型防御。
func DecodeConfig(raw []byte) (Config, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("strategy json 解析失败: %w", err)
	}
	if err := configSchema.Validate(doc); err != nil {
		return Config{}, fmt.Errorf("strategy json 校验失败: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("strategy json 解码失败: %w", err)
	}
	if cfg.Side == "" {
		cfg.Side = SideLong
	}
	return cfg, nil
}
