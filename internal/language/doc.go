// Package language normalizes transcription language hints.
//
// Hints may be ISO 639-1/639-2 codes, BCP 47 tags, English word forms, or
// "auto". They are reduced to the base language code the transcription
// collaborator accepts.
package language
