package backend

import _ "embed"

// playerPage is the minimal WebGL view served by the Local player. It
// renders the first screen-targeted fragment pass; buffer passes and
// sound playback are handled by full player implementations connecting
// to the same hub.
//
//go:embed player.html
var playerPage []byte
