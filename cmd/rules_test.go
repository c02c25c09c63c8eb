package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRulesCmdStructure(t *testing.T) {
	root := NewRulesCmd()
	assert.Equal(t, "rules", root.Use)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"list", "show", "import", "enable", "disable", "delete"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRulesCmdPersistentFlags(t *testing.T) {
	root := NewRulesCmd()
	for _, flag := range []string{"json", "no-color", "quiet"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestDeleteRequiresForce(t *testing.T) {
	root := NewRulesCmd()
	root.SetArgs([]string{"delete", "some-rule"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestListHasAllFlag(t *testing.T) {
	root := NewRulesCmd()
	list, _, err := root.Find([]string{"list"})
	require.NoError(t, err)
	assert.NotNil(t, list.Flags().Lookup("all"))
	assert.NotNil(t, list.Flags().Lookup("type"))
}
