//go:build !speexdsp
// +build !speexdsp

package speex

import (
	"fmt"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

var DefaultEngineFactory EngineFactory = func(int, audio.SampleRate) (Engine, error) {
	return nil, fmt.Errorf("built without tag 'speexdsp'")
}
