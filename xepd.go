// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/datastructures/blockindexstore"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/processes/difficultymanager"
	"github.com/xepnet/xepd/domain/consensus/processes/stakekernel"
	"github.com/xepnet/xepd/domain/consensus/utils/pow"
	"github.com/xepnet/xepd/domain/consensus/utils/utxo"
	"github.com/xepnet/xepd/infrastructure/config"
	"github.com/xepnet/xepd/infrastructure/db/database/ldb"
	"github.com/xepnet/xepd/infrastructure/logger"
	"github.com/xepnet/xepd/infrastructure/os/signal"
	"github.com/xepnet/xepd/util/panics"
	"github.com/xepnet/xepd/version"
)

const blockIndexDirname = "blockindex"

// xepdMain is the real main function for xepd. It is invoked from main so
// deferred cleanup runs before the process exit code is decided.
func xepdMain() error {
	interrupt := signal.InterruptListener()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	err = logger.InitLog(
		filepath.Join(cfg.LogDir, config.DefaultLogFilename),
		filepath.Join(cfg.LogDir, config.DefaultErrLogFilename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %+v\n", err)
		return err
	}
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, nil)

	log.Infof("Version %s", version.Version())
	log.Debugf("Configuration:\n%s", spew.Sdump(cfg.Flags))

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		spawn := panics.GoroutineWrapperFunc(log)
		spawn(func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			log.Infof("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			log.Error(http.ListenAndServe(listenAddr, nil))
		})
	}

	params := cfg.NetParams()
	dbPath := filepath.Join(cfg.DataDir, blockIndexDirname)
	log.Infof("Loading block index from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath)
	if err != nil {
		log.Errorf("Could not open the block index database: %+v", err)
		return err
	}
	store := blockindexstore.New(db)
	defer func() {
		log.Infof("Gracefully shutting down xepd...")
		err := store.Close()
		if err != nil {
			log.Errorf("Error closing the block index database: %+v", err)
		}
		log.Infof("Shutdown complete")
	}()

	index, err := blockindexstore.LoadIndex(store)
	if err != nil {
		log.Errorf("Could not load the block index: %+v", err)
		return err
	}
	if index.Len() == 0 {
		index, err = initializeIndex(store, params)
		if err != nil {
			log.Errorf("Could not initialize the block index: %+v", err)
			return err
		}
	}

	kernel := stakekernel.New(params)
	err = checkStakeModifierCheckpoints(index, kernel)
	if err != nil {
		log.Errorf("Block index failed the stake modifier checkpoint "+
			"check: %+v", err)
		return err
	}

	view, err := genesisUTXOView(params)
	if err != nil {
		log.Errorf("Could not build the genesis utxo view: %+v", err)
		return err
	}

	tip := index.Tip()
	log.Infof("Block index loaded: %d blocks on %s, tip %s at height %d",
		index.Len(), params.Name, tip.Hash(), tip.Height())
	log.Infof("Genesis utxo commitment over %d premine outputs: %s",
		view.Len(), view.Commitment())
	logNextDifficulty(index, params, difficultymanager.New(params))

	<-interrupt
	return nil
}

// initializeIndex seeds a fresh block index with the network's genesis
// block and persists it.
func initializeIndex(store model.BlockIndexStore,
	params *chainconfig.Params) (*blockindex.Index, error) {

	// Version 1 headers carry no algorithm tag; the pre-fork work
	// function is SHA256d.
	err := pow.CheckProofOfWork(params.GenesisHash, params.GenesisHeader.Bits,
		model.AlgoPoWSHA256, params)
	if err != nil {
		return nil, errors.Wrap(err, "genesis block fails its own proof of work")
	}

	index := blockindex.NewIndex()
	node, err := index.AddHeader(params.GenesisHeader)
	if err != nil {
		return nil, err
	}
	node.SetStakeModifier(0, true)
	node.SetStakeModifierChecksum(stakekernel.StakeModifierChecksum(node))
	err = store.Put(node.Entry())
	if err != nil {
		return nil, err
	}
	log.Infof("Initialized a new block index with genesis block %s",
		node.Hash())
	return index, nil
}

// genesisUTXOView seeds a utxo viewpoint with the premine outputs of the
// network's genesis block. The genesis block holds a single transaction, so
// the outputs live under the header's merkle root.
func genesisUTXOView(params *chainconfig.Params) (*utxo.Viewpoint, error) {
	view := utxo.NewViewpoint()
	blockTime := int64(params.GenesisHeader.Timestamp)
	for i, output := range params.GenesisCoinbaseOutputs() {
		outpoint := model.Outpoint{
			TxID:  params.GenesisHeader.MerkleRoot,
			Index: uint32(i),
		}
		entry := utxo.NewEntry(output.Value, output.ScriptPubKey, 0,
			blockTime, true, false)
		err := view.AddEntry(outpoint, entry)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

// checkStakeModifierCheckpoints verifies the persisted modifier checksums of
// the loaded chain against the network's hardcoded checkpoints.
func checkStakeModifierCheckpoints(index *blockindex.Index,
	kernel *stakekernel.Kernel) error {

	for node := index.Tip(); node != nil; node = node.Parent() {
		if !kernel.CheckStakeModifierCheckpoints(node.Height(),
			node.StakeModifierChecksum()) {
			return errors.Errorf("block %s at height %d does not match "+
				"the stake modifier checkpoint", node.Hash(), node.Height())
		}
	}
	return nil
}

// logNextDifficulty logs the required target of the next block on each
// algorithm track.
func logNextDifficulty(index *blockindex.Index, params *chainconfig.Params,
	dm *difficultymanager.DifficultyManager) {

	tip := index.Tip()
	now := uint32(time.Now().Unix())
	posBits := dm.RequiredDifficulty(tip, &model.BlockHeader{
		Version:   model.AlgoFlag(model.AlgoPoS),
		Timestamp: now,
	})
	powBits := dm.RequiredDifficulty(tip, &model.BlockHeader{
		Version:   model.AlgoFlag(model.AlgoPoWSHA256),
		Timestamp: now,
	})
	log.Infof("Next difficulty: proof-of-stake %08x, proof-of-work %08x",
		posBits, powBits)
}
