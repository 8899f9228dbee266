// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/config"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph/memgraph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/ManuGH/dvbgraph/internal/pipeline/scan"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/ManuGH/dvbgraph/internal/session"
)

const (
	simTuner       = "@device:pnp:sim-tuner0"
	simReceiver    = "@device:pnp:sim-receiver0"
	subtitleModule = "dvbsub.ax"
)

var (
	nv12 = media.Capability{Major: media.MajorVideo, Minor: media.MinorNV12}
	pcm  = media.Capability{Major: media.MajorAudio, Minor: media.MinorPCM}
)

// rig is an in-memory tuner card and component set shaped by the config.
type rig struct {
	graph   *memgraph.Graph
	demux   *memgraph.Demux
	tuner   *memgraph.Tuner
	modules *registry.ModuleCache
	deps    session.Deps
}

func newRig(cfg config.AppConfig, store *channels.Store, b bus.Bus) *rig {
	direct := cfg.Tuner.Receiver == ""
	r := &rig{
		graph: memgraph.New(),
		demux: memgraph.NewDemux("MPEG-2 Demultiplexer", nil),
		tuner: memgraph.NewTuner("BDA Tuner", memgraph.TunerOptions{DirectTransport: direct}),
	}
	r.tuner.Frequency.SetSignal(memgraph.Signal{Present: true, Locked: true, Strength: 78, Quality: 92})
	r.tuner.Demodulator.SetSignal(memgraph.Signal{Present: true, Locked: true, Strength: 78, Quality: 92})

	tunerName := cfg.Tuner.Device
	if tunerName == "" {
		tunerName = simTuner
	}
	devices := memgraph.NewDevices()
	devices.Register(media.CategoryNetworkProvider,
		registry.Device{DisplayName: "@device:sw:provider", FriendlyName: cfg.Tuner.NetworkProvider},
		func() graph.Node { return memgraph.NewNetworkProvider("Network Provider") })
	devices.Register(media.CategoryNetworkTuner,
		registry.Device{DisplayName: tunerName, FriendlyName: "Simulated DVB Tuner", ID: uuid.New()},
		func() graph.Node { return r.tuner })
	if !direct {
		devices.Register(media.CategoryReceiver,
			registry.Device{DisplayName: cfg.Tuner.Receiver, FriendlyName: "Simulated Receiver"},
			func() graph.Node { return memgraph.NewReceiver("BDA Receiver") })
	}

	transport := transportFor(store.All())
	catalog := streams.DefaultCatalog(cfg.Tuner.NetworkType, media.Geometry{})
	renderers := memgraph.Renderers{}
	moduleCtors := map[uuid.UUID]func() graph.Node{}
	var transforms []*registry.Descriptor

	add := func(name string, in media.Capability, src registry.Source) *registry.Descriptor {
		d := &registry.Descriptor{ID: uuid.New(), Name: name, Merit: registry.MeritNormal, Source: src}
		d.AddType(in.Major, in.Minor)
		transforms = append(transforms, d)
		return d
	}
	factory := func(build func() graph.Node) registry.Source {
		return registry.SourceFactory{New: func(context.Context) (graph.Node, error) { return build(), nil }}
	}

	for _, k := range []model.StreamKind{model.KindMPV, model.KindH264, model.KindHEVC} {
		d, _ := catalog.Get(k)
		name := string(k) + " video decoder"
		add(name, d.MediaType.Capability, factory(func() graph.Node {
			return memgraph.NewTransform(name, []media.MediaType{d.MediaType}, []media.MediaType{{Capability: nv12}})
		}))
	}
	for _, k := range []model.StreamKind{model.KindMPA, model.KindAC3, model.KindEAC3, model.KindADTS, model.KindLATM} {
		d, _ := catalog.Get(k)
		name := string(k) + " audio decoder"
		add(name, d.MediaType.Capability, factory(func() graph.Node {
			return memgraph.NewTransform(name, []media.MediaType{d.MediaType}, []media.MediaType{{Capability: pcm}})
		}))
	}

	video := add("Video Renderer", nv12, registry.SourceRenderer{})
	renderers[video.ID] = func(bool) graph.Node { return memgraph.NewSink("Video Renderer", media.MediaType{Capability: nv12}) }
	audio := add("Audio Renderer", pcm, registry.SourceRenderer{})
	renderers[audio.ID] = func(bool) graph.Node { return memgraph.NewSink("Audio Renderer", media.MediaType{Capability: pcm}) }

	sub := add("DVB Subtitle Decoder", media.DVBSubtitles().Capability, registry.SourceFile{Path: subtitleModule})
	moduleCtors[sub.ID] = func() graph.Node { return memgraph.NewSink("DVB Subtitle Decoder", media.DVBSubtitles()) }

	add("Section Sink", media.Capability{Major: media.MajorMPEG2Sections}, factory(func() graph.Node {
		return memgraph.NewSectionSink("Section Sink", transport)
	}))

	r.modules = registry.NewModuleCache(memgraph.Modules{subtitleModule: moduleCtors}, cfg.Modules.UnloadInterval)
	scanner := scan.NewManager(scan.PSIParser{Namer: storeNamer{store}}, b)
	scanner.SettleDelay = 0

	r.deps = session.Deps{
		Runtime:    r.graph,
		Devices:    devices,
		Env:        registry.Environment{Devices: devices, Modules: r.modules, Renderers: renderers},
		Transforms: transforms,
		Demux: func(context.Context) (graph.Demultiplexer, error) {
			return r.demux, nil
		},
		Channels: store,
		Bus:      b,
		Scanner:  scanner,
	}
	return r
}

// storeNamer names scanned services after the channel file.
type storeNamer struct{ store *channels.Store }

func (n storeNamer) ServiceName(sid uint16) (string, bool) {
	for _, ch := range n.store.All() {
		if ch.SID == sid {
			return ch.Name, true
		}
	}
	return "", false
}

// PMT stream types and descriptors the simulated multiplex is encoded with.
const (
	typeMPEG2Video = 0x02
	typeMPEG2Audio = 0x04
	typeADTS       = 0x0f
	typeLATM       = 0x11
	typeH264       = 0x1b
	typeHEVC       = 0x24
	typeAC3        = 0x81
	typeEAC3       = 0x87
	typePrivatePES = 0x06

	tagSubtitling = 0x59
)

var streamTypes = map[model.StreamKind]byte{
	model.KindMPV:  typeMPEG2Video,
	model.KindH264: typeH264,
	model.KindHEVC: typeHEVC,
	model.KindMPA:  typeMPEG2Audio,
	model.KindAC3:  typeAC3,
	model.KindEAC3: typeEAC3,
	model.KindADTS: typeADTS,
	model.KindLATM: typeLATM,
}

// transportFor encodes the program tables of every channel as one
// multiplex capture.
func transportFor(chs []channels.Channel) []byte {
	var programs []memgraph.Program
	for i, ch := range chs {
		if ch.SID == 0 {
			continue
		}
		p := memgraph.Program{Number: ch.SID, PMTPID: ch.PMTPID}
		if p.PMTPID == 0 {
			p.PMTPID = 0x1000 + uint16(i)
		}
		if !ch.IsRadio() {
			p.PCRPID = ch.VideoPID
			p.Streams = append(p.Streams, memgraph.ElementaryStream{Type: streamTypes[ch.VideoKind], PID: ch.VideoPID})
		}
		for _, a := range ch.Audio {
			t, ok := streamTypes[a.Kind]
			if !ok {
				continue
			}
			if p.PCRPID == 0 {
				p.PCRPID = a.PID
			}
			es := memgraph.ElementaryStream{Type: t, PID: a.PID}
			if a.Language != "" {
				es.Descriptors = append(es.Descriptors, memgraph.LanguageDescriptor(a.Language))
			}
			p.Streams = append(p.Streams, es)
		}
		for _, s := range ch.Subtitles {
			data := make([]byte, 8)
			copy(data, s.Language)
			data[3] = 0x10
			p.Streams = append(p.Streams, memgraph.ElementaryStream{
				Type:        typePrivatePES,
				PID:         s.PID,
				Descriptors: []memgraph.Descriptor{{Tag: tagSubtitling, Data: data}},
			})
		}
		programs = append(programs, p)
	}
	return memgraph.BuildTransport(1, programs...)
}
