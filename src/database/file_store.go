package database

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"signalengine/src/strategy"
)

// DefinitionsFile 策略定义文件的顶层结构
//
//	strategies:
//	  - id: 1
//	    name: rsi-1h
//	    type: rsi_entry
//	    timeframe: 1h
//	    status: ACTIVE
//	    parameters:
//	      rsi_period: 14
type DefinitionsFile struct {
	Strategies []strategy.Definition `yaml:"strategies"`
}

// ParseDefinitions 解析并校验 YAML 内容：类型已知、ID 为正且不重复、状态合法
func ParseDefinitions(data []byte) ([]strategy.Definition, error) {
	var file DefinitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategy definitions: %w", err)
	}

	seen := make(map[int64]bool, len(file.Strategies))
	for i, def := range file.Strategies {
		if def.ID <= 0 {
			return nil, fmt.Errorf("strategy #%d (%s): id must be > 0", i, def.Name)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("strategy #%d (%s): duplicate id %d", i, def.Name, def.ID)
		}
		seen[def.ID] = true

		if _, err := strategy.ParseType(string(def.Type)); err != nil {
			return nil, fmt.Errorf("strategy %d: %w", def.ID, err)
		}
		if def.Status == "" {
			file.Strategies[i].Status = strategy.StatusInactive
		} else if !def.Status.IsValid() {
			return nil, fmt.Errorf("strategy %d: invalid status %s", def.ID, def.Status)
		}
		if def.Name == "" {
			file.Strategies[i].Name = fmt.Sprintf("%s-%d", def.Type, def.ID)
		}
	}
	return file.Strategies, nil
}

// LoadDefinitionsFile 读取 YAML 策略定义文件
func LoadDefinitionsFile(path string) ([]strategy.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// FileParameterStore 只读的文件参数源
type FileParameterStore struct {
	path string
}

// NewFileParameterStore 创建文件参数源
func NewFileParameterStore(path string) *FileParameterStore {
	return &FileParameterStore{path: path}
}

// LoadDefinitions 每次调用都重新读取文件
func (f *FileParameterStore) LoadDefinitions(ctx context.Context) ([]strategy.Definition, error) {
	return LoadDefinitionsFile(f.path)
}
