package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envFile    string
	lookup     func(string) (string, bool)
	overrides  map[string]string
	dotenv     map[string]string
}

// NewLoader creates a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{
		lookup:    os.LookupEnv,
		overrides: make(map[string]string),
	}
}

// WithConfigPath sets the JSON or YAML configuration file. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvFile sets a .env file whose keys fill gaps in the real environment.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// WithEnv replaces the environment lookup, mainly for tests.
func (l *Loader) WithEnv(env map[string]string) *Loader {
	l.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

// WithOverrides sets values keyed by config path (e.g. "api.baseUrl") that win over everything.
func (l *Loader) WithOverrides(overrides map[string]string) *Loader {
	l.overrides = overrides
	return l
}

// Load resolves the configuration:
// defaults < config file < environment (.env fills gaps) < overrides
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if l.envFile != "" {
		env, err := LoadDotEnv(l.envFile)
		if err != nil {
			return nil, fmt.Errorf("读取 .env 失败: %w", err)
		}
		l.dotenv = env
	}

	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem(), l.getenv); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}
	if v, ok := l.getenv("CI_ENVIRONMENT"); ok {
		cfg.CI = v == "true"
	}

	if len(l.overrides) > 0 {
		if err := applyPaths(reflect.ValueOf(cfg).Elem(), func(path string) (string, bool) {
			v, ok := l.overrides[path]
			return v, ok
		}); err != nil {
			return nil, fmt.Errorf("应用命令行参数覆盖失败: %w", err)
		}
	}

	return cfg, nil
}

// getenv returns non-empty values from the real environment first, then the .env file.
func (l *Loader) getenv(key string) (string, bool) {
	if v, ok := l.lookup(key); ok && v != "" {
		return v, true
	}
	if v, ok := l.dotenv[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	tree, err := decodeTree(l.configPath, data)
	if err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return applyPaths(reflect.ValueOf(cfg).Elem(), func(path string) (string, bool) {
		return lookupPath(tree, path)
	})
}

// decodeTree decodes JSON with sonic and anything else as YAML.
func decodeTree(path string, data []byte) (any, error) {
	var tree any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := sonic.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return tree, nil
	}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// lookupPath resolves a dotted path with JSONPath and renders scalars as strings.
func lookupPath(tree any, path string) (string, bool) {
	if tree == nil {
		return "", false
	}
	expr, err := jp.ParseString("$." + path)
	if err != nil {
		return "", false
	}
	results := expr.Get(tree)
	if len(results) == 0 {
		return "", false
	}
	switch v := results[0].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// applyPaths sets every field carrying a `path` tag that get resolves.
func applyPaths(v reflect.Value, get func(string) (string, bool)) error {
	return walk(v, "path", get)
}

func applyEnvToStruct(v reflect.Value, get func(string) (string, bool)) error {
	return walk(v, "env", get)
}

func walk(v reflect.Value, tag string, get func(string) (string, bool)) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := walk(field, tag, get); err != nil {
				return err
			}
			continue
		}

		key := fieldType.Tag.Get(tag)
		if key == "" {
			continue
		}
		value, ok := get(key)
		if !ok {
			continue
		}

		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("从 %s 设置字段 %s 失败: %w", key, fieldType.Name, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}
	value = strings.TrimSpace(value)

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := parseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("无效的整数: %w", err)
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// parseDuration accepts Go/k6 duration strings and bare numbers as milliseconds.
func parseDuration(value string) (time.Duration, error) {
	if ms, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("无效的时间格式: %w", err)
	}
	return d, nil
}

// LoadDotEnv 读取 .env 文件，缺失时返回空 map
func LoadDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	return env, nil
}
