package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerKeyUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AnswerKey
	}{
		{"单个字符串", `"nil"`, AnswerKey{"nil"}},
		{"单元素列表", `["false"]`, AnswerKey{"false"}},
		{"有序列表", `["加载配置","连接依赖","监听端口"]`, AnswerKey{"加载配置", "连接依赖", "监听端口"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var key AnswerKey
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &key))
			assert.Equal(t, tt.want, key)
		})
	}

	var key AnswerKey
	assert.Error(t, json.Unmarshal([]byte(`42`), &key))
}

func TestAnswerKeyMarshal(t *testing.T) {
	// 单个答案序列化回裸字符串，与模型的出题格式保持一致
	data, err := json.Marshal(AnswerKey{"nil"})
	require.NoError(t, err)
	assert.Equal(t, `"nil"`, string(data))

	data, err = json.Marshal(AnswerKey{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(data))
}
