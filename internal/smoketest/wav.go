package smoketest

import (
	"bytes"
	"encoding/binary"
)

const (
	wavSampleRate    = 16000
	wavChannels      = 1
	wavBitsPerSample = 16
	wavSamples       = wavSampleRate / 4
)

// silentWAV возвращает 0.25 с тишины: PCM, моно, 16 кГц, 16 бит.
func silentWAV() []byte {
	const (
		blockAlign = wavChannels * wavBitsPerSample / 8
		byteRate   = wavSampleRate * blockAlign
		dataSize   = wavSamples * blockAlign
	)

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	le(&buf, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(&buf, uint32(16))
	le(&buf, uint16(1)) // PCM
	le(&buf, uint16(wavChannels))
	le(&buf, uint32(wavSampleRate))
	le(&buf, uint32(byteRate))
	le(&buf, uint16(blockAlign))
	le(&buf, uint16(wavBitsPerSample))

	buf.WriteString("data")
	le(&buf, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func le(buf *bytes.Buffer, v any) {
	// bytes.Buffer never returns a write error.
	_ = binary.Write(buf, binary.LittleEndian, v)
}
