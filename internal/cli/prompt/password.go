package prompt

import (
	"github.com/manifoldco/promptui"
)

// Secret prompts for a value that must not be echoed, such as a bearer
// token. An empty answer is allowed.
func Secret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}
