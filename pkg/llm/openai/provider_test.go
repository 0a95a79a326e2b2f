package openai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/aegis/pkg/llm"
	"github.com/kart-io/aegis/pkg/utils/httpclient"
)

func TestClassifyError(t *testing.T) {
	t.Run("解码失败归为响应格式错误", func(t *testing.T) {
		err := classifyError(fmt.Errorf("%w: unexpected token", httpclient.ErrDecodeResponse))
		assert.True(t, llm.IsMalformedResponse(err))
	})

	t.Run("网络错误归为服务不可用", func(t *testing.T) {
		err := classifyError(errors.New("connection refused"))
		assert.True(t, llm.IsRemoteUnavailable(err))
	})

	t.Run("无错误时返回nil", func(t *testing.T) {
		assert.NoError(t, classifyError(nil))
	})
}
