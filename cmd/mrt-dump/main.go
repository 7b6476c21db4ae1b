// mrt-dump prints a human-readable summary of an MRT dump file. It is a
// debugging aid for inspecting collector output without a database.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/route-beacon/mrt-ingester/internal/dump"
	"github.com/route-beacon/mrt-ingester/internal/mrt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: mrt-dump <file> [max-records]")
		os.Exit(1)
	}
	path := os.Args[1]

	maxRecords := 0
	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &maxRecords)
	}

	r, err := dump.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	counts := map[uint16]int{}
	recNum := 0
	errNum := 0

	for {
		h, rec, err := mrt.Read(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			errNum++
			fmt.Printf("[%d] decode error: %v\n", recNum, err)
			continue
		}

		recNum++
		counts[h.Type]++

		if maxRecords > 0 && recNum > maxRecords {
			continue
		}

		ts := time.Unix(int64(h.Timestamp), 0).UTC().Format(time.RFC3339)
		fmt.Printf("[%d] %s type=%d subtype=%d len=%d", recNum, ts, h.Type, h.SubType, h.Length)
		if h.Extended != 0 {
			fmt.Printf(" usec=%d", h.Extended)
		}
		fmt.Println()

		describe(rec)
	}

	fmt.Printf("\nTotal records: %d (%d errors)\n", recNum, errNum)
	for t, n := range counts {
		fmt.Printf("  type %d: %d\n", t, n)
	}
}

func describe(rec mrt.Record) {
	switch r := rec.(type) {
	case mrt.PeerIndexTable:
		fmt.Printf("    peer index table: collector=%08x view=%q peers=%d\n",
			r.CollectorID, r.ViewName, len(r.Peers))
		for i, p := range r.Peers {
			if i >= 5 {
				fmt.Printf("    ... (%d more peers) ...\n", len(r.Peers)-5)
				break
			}
			fmt.Printf("    [%d] ip=%s as=%d bgp_id=%08x\n", i, p.IPAddress, p.PeerAS, p.BGPID)
		}
	case mrt.RIB:
		fmt.Printf("    rib afi=%d prefix=%s/%d entries=%d\n",
			r.AFI, hex.EncodeToString(r.Prefix), r.PrefixLength, len(r.Entries))
	case mrt.RIBAddPath:
		fmt.Printf("    rib addpath afi=%d prefix=%s/%d entries=%d\n",
			r.AFI, hex.EncodeToString(r.Prefix), r.PrefixLength, len(r.Entries))
	case mrt.RIBGeneric:
		fmt.Printf("    rib generic afi=%d safi=%d nlri=%d bytes entries=%d\n",
			r.AFI, r.SAFI, len(r.NLRI), len(r.Entries))
	case mrt.TableDump:
		fmt.Printf("    table dump prefix=%s/%d peer=%s as=%d attrs=%d bytes\n",
			r.Prefix, r.PrefixLength, r.PeerAddress, r.PeerAS, len(r.Attributes))
	case mrt.BGP4MPMessage:
		fmt.Printf("    bgp4mp message peer_as=%d peer=%s local=%s msg=%d bytes local=%v addpath=%v\n",
			r.PeerAS, r.PeerAddress, r.LocalAddress, len(r.Message), r.Local, r.AddPath)
	case mrt.BGP4MPMessageAS4:
		fmt.Printf("    bgp4mp message_as4 peer_as=%d peer=%s local=%s msg=%d bytes local=%v addpath=%v\n",
			r.PeerAS, r.PeerAddress, r.LocalAddress, len(r.Message), r.Local, r.AddPath)
	case mrt.BGP4MPStateChange:
		fmt.Printf("    bgp4mp state change peer_as=%d peer=%s %d->%d\n",
			r.PeerAS, r.PeerAddress, r.OldState, r.NewState)
	case mrt.BGP4MPStateChangeAS4:
		fmt.Printf("    bgp4mp state change_as4 peer_as=%d peer=%s %d->%d\n",
			r.PeerAS, r.PeerAddress, r.OldState, r.NewState)
	case mrt.BGPMessage:
		fmt.Printf("    bgp subtype=%d peer_as=%d peer=%s msg=%d bytes\n",
			r.SubType, r.PeerAS, r.PeerIP, len(r.Message))
	case mrt.BGPStateChange:
		fmt.Printf("    bgp state change peer_as=%d peer=%s %d->%d\n",
			r.PeerAS, r.PeerIP, r.OldState, r.NewState)
	case mrt.ISIS:
		fmt.Printf("    isis pdu %d bytes\n", len(r.Message))
	case mrt.OSPFv2:
		fmt.Printf("    ospfv2 remote=%s local=%s msg=%d bytes\n",
			r.RemoteAddress, r.LocalAddress, len(r.Message))
	case mrt.OSPFv3:
		fmt.Printf("    ospfv3 afi=%d remote=%s local=%s msg=%d bytes\n",
			r.AFI, r.RemoteAddress, r.LocalAddress, len(r.Message))
	case mrt.RIP:
		fmt.Printf("    rip remote=%s local=%s msg=%d bytes\n",
			r.RemoteAddress, r.LocalAddress, len(r.Message))
	case mrt.RIPNG:
		fmt.Printf("    ripng remote=%s local=%s msg=%d bytes\n",
			r.RemoteAddress, r.LocalAddress, len(r.Message))
	}
}
