//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorFeaturesFailed
	ErrorEqualizerFailed
	ErrorCompareFailed
)

// readBuffer converts (audioArray, sampleRate, channels) arguments starting
// at args[0] into a mono buffer.
func readBuffer(args []js.Value) (audio.Buffer, string) {
	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return audio.Buffer{}, "audioArray must be an Array or Float64Array"
	}
	if sampleRateJS.Type() != js.TypeNumber {
		return audio.Buffer{}, "sampleRate must be a number"
	}
	if channelsJS.Type() != js.TypeNumber {
		return audio.Buffer{}, "channels must be a number"
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()

	if sampleRate <= 0 {
		return audio.Buffer{}, fmt.Sprintf("Invalid sample rate: %d", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return audio.Buffer{}, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels)
	}

	length := audioDataJS.Length()
	if length == 0 {
		return audio.Buffer{}, "audioArray is empty"
	}

	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return audio.Buffer{}, fmt.Sprintf("audioArray element %d is not a number", i)
		}
		samples[i] = val.Float()
	}

	if channels == 2 {
		samples = stereoToMono(samples)
	}
	return audio.Buffer{Samples: samples, SampleRate: sampleRate}, ""
}

// Computes the mean MFCC and chroma vectors of the given samples.
// Args: audioArray, sampleRate, channels
// Returns: {error: number, data: {mfcc, chroma, blockFrames} | string}
func timbreFeatures(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}
	buf, msg := readBuffer(args)
	if msg != "" {
		return makeErrorResponse(ErrorInvalidArgs, msg)
	}

	p := features.DefaultParams()
	mfcc, err := features.MeanMFCC(buf, p.NumMFCC, p)
	if err != nil {
		return makeErrorResponse(ErrorFeaturesFailed, fmt.Sprintf("Failed to compute MFCC: %v", err))
	}
	chroma, err := features.MeanChroma(buf, p)
	if err != nil {
		return makeErrorResponse(ErrorFeaturesFailed, fmt.Sprintf("Failed to compute chroma: %v", err))
	}
	blocks, err := features.BlockMFCCDelta(buf, p.NumBlocks, p.NumMFCC, p)
	if err != nil {
		return makeErrorResponse(ErrorFeaturesFailed, fmt.Sprintf("Failed to compute block features: %v", err))
	}

	data := js.Global().Get("Object").New()
	data.Set("mfcc", toJSArray(mfcc))
	data.Set("chroma", toJSArray(chroma))
	data.Set("blockFrames", len(blocks))

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// Applies the five band equalizer and returns peak-normalised mono samples.
// Args: audioArray, sampleRate, channels, gainsArray
// Returns: {error: number, data: array | string}
func timbreEqualize(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 4 arguments: audioArray, sampleRate, channels, gains")
	}
	buf, msg := readBuffer(args)
	if msg != "" {
		return makeErrorResponse(ErrorInvalidArgs, msg)
	}

	gainsJS := args[3]
	if gainsJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "gains must be an Array")
	}
	gains := make([]int, gainsJS.Length())
	for i := range gains {
		gains[i] = gainsJS.Index(i).Int()
	}

	cfg, err := equalizer.FromGains(gains, equalizer.DefaultQ)
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	out, err := equalizer.Apply(buf, cfg)
	if err != nil {
		return makeErrorResponse(ErrorEqualizerFailed, fmt.Sprintf("Failed to equalize: %v", err))
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", toJSArray(out.Normalized().Samples))
	return result
}

// Scores two clips with the same weights as the server.
// Args: audioA, sampleRateA, channelsA, audioB, sampleRateB, channelsB
// Returns: {error: number, data: {combined, dtwSimilarity, chromaSimilarity} | string}
func timbreCompare(this js.Value, args []js.Value) interface{} {
	if len(args) < 6 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 6 arguments: audioA, sampleRateA, channelsA, audioB, sampleRateB, channelsB")
	}
	a, msg := readBuffer(args[0:3])
	if msg != "" {
		return makeErrorResponse(ErrorInvalidArgs, "A: "+msg)
	}
	b, msg := readBuffer(args[3:6])
	if msg != "" {
		return makeErrorResponse(ErrorInvalidArgs, "B: "+msg)
	}

	clips := map[string]*audio.Buffer{"a": &a, "b": &b}
	dec := audio.DecoderFunc(func(ctx context.Context, key string) (*audio.Buffer, error) {
		return clips[key], nil
	})
	extractor, err := features.NewExtractor(nil, features.DefaultParams())
	if err != nil {
		return makeErrorResponse(ErrorProcessing, err.Error())
	}
	engine := similarity.NewEngine(dec, extractor, similarity.DefaultOptions())

	s, err := engine.Compare(context.Background(), "a", "b")
	if err != nil {
		return makeErrorResponse(ErrorCompareFailed, fmt.Sprintf("Failed to compare: %v", err))
	}

	data := js.Global().Get("Object").New()
	data.Set("combined", s.Combined)
	data.Set("dtwSimilarity", s.DTWSimilarity)
	data.Set("chromaSimilarity", s.ChromaSimilarity)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func toJSArray(v []float64) js.Value {
	arr := js.Global().Get("Array").New(len(v))
	for i, x := range v {
		arr.SetIndex(i, x)
	}
	return arr
}

func stereoToMono(stereo []float64) []float64 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	monoLength := len(stereo) / 2
	mono := make([]float64, monoLength)

	for i := 0; i < monoLength; i++ {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}

	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}
	logf("log", "TimbreMatch WASM module initializing...")

	done := make(chan struct{})

	js.Global().Set("timbreFeatures", js.FuncOf(timbreFeatures))
	js.Global().Set("timbreEqualize", js.FuncOf(timbreEqualize))
	js.Global().Set("timbreCompare", js.FuncOf(timbreCompare))
	logf("log", "timbreFeatures, timbreEqualize and timbreCompare registered")

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
		logf("log", "wasmReady event dispatched")
	} else {
		logf("error", "window object is undefined!")
	}

	<-done
}
