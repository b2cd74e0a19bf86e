package signature

import (
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// HashField は署名自身が入るフォーム項目。署名文字列からは除く。
const HashField = "hash"

// SortedParamHash はフォーム（x-www-form-urlencoded）の値をキー順に連結し、
// 末尾にシークレットを足してハッシュする方式（Paynow）。
// キー名自体はハッシュに入らない。並び順を保ったキー名の書き換えは検出できないので、
// 呼び出し側は必須項目（reference, status）が揃っていることを Parse で確かめること。
type SortedParamHash struct {
	Digest func() hash.Hash
}

func NewPaynowHash() SortedParamHash {
	return SortedParamHash{Digest: sha512.New}
}

func (s SortedParamHash) Verify(rawBody []byte, sig, secret string) bool {
	expected, err := s.Sign(rawBody, secret)
	if err != nil {
		return false
	}
	return equalHex(expected, sig)
}

func (s SortedParamHash) Sign(rawBody []byte, secret string) (string, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return "", err
	}
	return s.SignValues(values, secret), nil
}

// SignValues は外向きリクエスト（initiate）の署名にも使う。
func (s SortedParamHash) SignValues(values url.Values, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.EqualFold(k, HashField) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			b.WriteString(v)
		}
	}
	b.WriteString(secret)

	digest := s.Digest
	if digest == nil {
		digest = sha512.New
	}
	h := digest()
	h.Write([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}
