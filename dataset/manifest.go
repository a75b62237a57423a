package dataset

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Entry はマニフェストの1行
// 評価用マニフェストはFilename以外が空になる
type Entry struct {
	// Filename は録音ファイルの名前
	Filename string

	// SceneLabel はシーンラベル
	SceneLabel string

	// Identifier は収録地識別子
	Identifier string

	// SourceLabel は録音デバイス
	SourceLabel string
}

// ReadManifest はフォールドのマニフェストを読み込む
// 区切り文字はヘッダ行から判定する(タブまたはカンマ)。filename列は必須で、
// scene_label・identifier・source_label列は任意。source_label列がない場合は
// ファイル名のデバイス接尾辞から補う
func ReadManifest(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse manifest %s", path)
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("ReadManifest", path+": empty manifest")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(name)] = i
	}
	fileCol, ok := cols["filename"]
	if !ok {
		return nil, errors.NewValueError("ReadManifest", path+": missing filename column")
	}

	get := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, row := range records[1:] {
		e := Entry{
			Filename:    strings.TrimSpace(row[fileCol]),
			SceneLabel:  get(row, "scene_label"),
			Identifier:  get(row, "identifier"),
			SourceLabel: get(row, "source_label"),
		}
		if e.SourceLabel == "" {
			e.SourceLabel = DeviceFromName(e.Filename)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeviceFromName はファイル名末尾のデバイス接尾辞を取り出す
// "tram-lisbon-1032-40103-a.wav" のような名前から "a" を返す。
// 接尾辞がデバイスラベルでない場合は空文字列を返す
func DeviceFromName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndex(base, "-")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	suffix := base[i+1:]
	for _, d := range SourceDevices {
		if suffix == d {
			return suffix
		}
	}
	return ""
}

// sniffDelimiter はヘッダ行からタブ区切りかカンマ区切りかを判定する
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.ContainsRune(line, '\t') {
		return '\t'
	}
	return ','
}
