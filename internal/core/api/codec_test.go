package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestJSONCodec_Registered(t *testing.T) {
	assert.NotNil(t, encoding.GetCodec(CodecName))
}

func TestJSONCodec_Structs(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&SearchTreeRequest{Keyword: "roof", Filter: "SubGroup"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"keyword":"roof","filter":"SubGroup"}`, string(data))

	var out SearchTreeRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "roof", out.Keyword)
}

func TestJSONCodec_ProtoMessages(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"SERVING"`)

	var out grpc_health_v1.HealthCheckResponse
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, out.Status)
}

func TestSaveRuleRequest_FlattensValidation(t *testing.T) {
	c := jsonCodec{}
	var req SaveRuleRequest
	require.NoError(t, c.Unmarshal([]byte(`{"ruleType":"choice","editedId":2001,"confirmed":true}`), &req))
	assert.Equal(t, "choice", req.RuleType)
	assert.True(t, req.Confirmed)
}
