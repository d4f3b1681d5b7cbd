// Package subtitles renders transcripts into Advanced SubStation Alpha
// documents and burns them into video.
//
// Rendering is pure: Render turns segments into document text and never
// touches disk. Write persists a document at {dir}/{id}.{lang}.ass, and
// Burner shells out to ffmpeg's ass filter to composite it into pixels.
package subtitles
