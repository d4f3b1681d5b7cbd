// Package workspace derives per-item artifact paths and discovers batch inputs.
//
// All derived paths are namespaced by inference id so concurrent items never
// collide: {merged}/{id}.mp4, {faded}/{id}.mp4, {subtitles}/{id}.{lang}.ass,
// and {final}/{id}.mp4.
package workspace
