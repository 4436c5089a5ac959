package apiclient

// Option 单个请求的选项
type Option func(*options)

type options struct {
	query   [][2]string
	headers [][2]string
	tags    map[string]string
}

func newOptions(method, endpoint string) *options {
	return &options{
		tags: map[string]string{"name": endpoint, "method": method},
	}
}

// WithQuery 添加查询参数，按添加顺序编码
func WithQuery(key, value string) Option {
	return func(o *options) {
		o.query = append(o.query, [2]string{key, value})
	}
}

// WithHeader 设置请求头
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers = append(o.headers, [2]string{key, value})
	}
}

// WithAuthorization 设置 Authorization 请求头，token 为空时不设置
func WithAuthorization(token string) Option {
	return func(o *options) {
		if token != "" {
			o.headers = append(o.headers, [2]string{"Authorization", token})
		}
	}
}

// WithTags 合并请求标签，同名标签覆盖默认值
func WithTags(tags map[string]string) Option {
	return func(o *options) {
		for k, v := range tags {
			o.tags[k] = v
		}
	}
}
