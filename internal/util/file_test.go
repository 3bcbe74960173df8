package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestValidateMimeTypeImage(t *testing.T) {
	mimeType, err := ValidateMimeType(bytes.NewReader(pngHeader), []string{MimeImage})
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
}

func TestValidateMimeTypeRejectsText(t *testing.T) {
	// 改了扩展名的文本文件照样会被内容嗅探拦下
	mimeType, err := ValidateMimeType(strings.NewReader("#!/bin/sh\nrm -rf /tmp/x\n"), []string{MimeImage})
	require.Error(t, err)
	assert.NotContains(t, mimeType, "image/")
}

func TestValidateMimeTypeExactMatch(t *testing.T) {
	payload := "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"
	mimeType, err := ValidateMimeType(strings.NewReader(payload), []string{"application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mimeType)
}
