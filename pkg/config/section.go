package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/herlein/lgwcal/pkg/channels"
)

// Section is the SX1301_conf object. The channel objects are decoded; every
// other entry (radio_0, lorawan_public, clksrc, ...) is kept untouched so a
// saved document still carries it.
type Section struct {
	Channels map[string]ChannelConf
	Other    map[string]interface{}
}

// Ignored returns the names of the entries that are not channel objects.
func (s Section) Ignored() []string {
	keys := make([]string, 0, len(s.Other))
	for key := range s.Other {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Section) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Section{}
	for key, msg := range raw {
		if !knownKey(key) {
			var v interface{}
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			s.keep(key, v)
			continue
		}
		var c ChannelConf
		if err := json.Unmarshal(msg, &c); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.set(key, c)
	}
	return nil
}

func (s *Section) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Section{}
	for key, v := range raw {
		if !knownKey(key) {
			s.keep(key, v)
			continue
		}
		// channel objects go through the tagged struct
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		var c ChannelConf
		if err := yaml.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.set(key, c)
	}
	return nil
}

func (s Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.merged())
}

func (s Section) MarshalYAML() (interface{}, error) {
	return s.merged(), nil
}

func (s Section) merged() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Channels)+len(s.Other))
	for key, v := range s.Other {
		out[key] = v
	}
	for key, c := range s.Channels {
		out[key] = c
	}
	return out
}

func (s *Section) set(key string, c ChannelConf) {
	if s.Channels == nil {
		s.Channels = make(map[string]ChannelConf)
	}
	s.Channels[key] = c
}

func (s *Section) keep(key string, v interface{}) {
	if s.Other == nil {
		s.Other = make(map[string]interface{})
	}
	s.Other[key] = plain(v)
}

// plain turns YAML's interface-keyed maps into string-keyed ones so the value
// can also be written as JSON.
func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = plain(e)
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

func knownKey(key string) bool {
	for i := 0; i < channels.NumChannels; i++ {
		if channelKey(i) == key {
			return true
		}
	}
	return false
}
