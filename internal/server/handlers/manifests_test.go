package handlers

import (
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKeepsName(t *testing.T) {
	for _, name := range []string{"Team Fortress 2.zip", "Pokémon Legends.zip", "plain.zip"} {
		disposition, params, err := mime.ParseMediaType(attachment(name))
		require.NoError(t, err, name)
		assert.Equal(t, "attachment", disposition)
		assert.Equal(t, name, params["filename"])
	}
}
