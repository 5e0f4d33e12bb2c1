package client_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stashbox/client"
)

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		_, ok := client.NewFormatter(true, false).(*client.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		hf, ok := client.NewFormatter(false, true).(*client.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	results := []client.UploadResult{
		{LocalPath: "photo.png", Link: "http://files.test/v1/abc.png", Size: 1024},
		{LocalPath: "broken.txt", Err: errors.New("upload failed")},
	}

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&client.HumanFormatter{}).FormatUpload(&buf, results))

		output := buf.String()
		assert.Contains(t, output, "Uploaded: photo.png (1.0 KB)")
		assert.Contains(t, output, "Link: http://files.test/v1/abc.png")
		assert.Contains(t, output, "Error: broken.txt - upload failed")
	})

	t.Run("quiet prints links only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&client.HumanFormatter{Quiet: true}).FormatUpload(&buf, results))

		assert.Equal(t, "http://files.test/v1/abc.png\nError: broken.txt - upload failed\n", buf.String())
	})
}

func TestHumanFormatter_FormatDownload(t *testing.T) {
	result := &client.DownloadResult{Name: "abc.png", LocalPath: "out.png", ETag: "e1", ContentType: "image/png", Size: 2 * 1024 * 1024}

	var buf bytes.Buffer
	require.NoError(t, (&client.HumanFormatter{}).FormatDownload(&buf, result))
	assert.Contains(t, buf.String(), "Downloaded: abc.png -> out.png (2.0 MB)")
	assert.Contains(t, buf.String(), "Type: image/png")

	buf.Reset()
	require.NoError(t, (&client.HumanFormatter{Quiet: true}).FormatDownload(&buf, result))
	assert.Empty(t, buf.String())
}

func TestJSONFormatter_FormatUpload(t *testing.T) {
	results := []client.UploadResult{
		{LocalPath: "photo.png", Link: "http://files.test/v1/abc.png", Size: 10},
		{LocalPath: "broken.txt", Err: errors.New("upload failed")},
	}

	var buf bytes.Buffer
	require.NoError(t, (&client.JSONFormatter{}).FormatUpload(&buf, results))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "http://files.test/v1/abc.png", got[0]["link"])
	assert.Equal(t, float64(10), got[0]["size_bytes"])
	assert.NotContains(t, got[0], "error")
	assert.Equal(t, "upload failed", got[1]["error"])
	assert.NotContains(t, got[1], "link")
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&client.JSONFormatter{}).FormatError(&buf, errors.New("boom")))
	assert.JSONEq(t, `{"error":"boom"}`, buf.String())
}

func TestFormatProfiles_MasksTokens(t *testing.T) {
	profiles := []client.Profile{
		{Name: "local", Endpoint: "http://localhost:5708", Token: testToken},
		{Name: "empty", Endpoint: "http://other:5708"},
	}

	t.Run("human list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&client.HumanFormatter{}).FormatProfileList(&buf, profiles, "local", false))

		output := buf.String()
		assert.Contains(t, output, "* local")
		assert.Contains(t, output, "0b6f...9b34")
		assert.Contains(t, output, "(not set)")
		assert.NotContains(t, output, testToken)
	})

	t.Run("human show with secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&client.HumanFormatter{}).FormatProfileShow(&buf, profiles[0], true, true))

		assert.Contains(t, buf.String(), "Name:      local (default)")
		assert.Contains(t, buf.String(), testToken)
	})

	t.Run("json list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&client.JSONFormatter{}).FormatProfileList(&buf, profiles, "local", false))

		var got struct {
			Profiles []struct {
				Name    string `json:"name"`
				Token   string `json:"token"`
				Default bool   `json:"default"`
			} `json:"profiles"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got.Profiles, 2)
		assert.Equal(t, "0b6f...9b34", got.Profiles[0].Token)
		assert.True(t, got.Profiles[0].Default)
		assert.False(t, got.Profiles[1].Default)
	})
}
